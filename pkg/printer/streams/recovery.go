// Printlink Core
// Copyright (c) 2026 The Printlink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Printlink Core.
//
// Printlink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Printlink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Printlink Core.  If not, see <http://www.gnu.org/licenses/>.

package streams

import (
	"slices"
	"strconv"

	"github.com/printlink/printlink-core/pkg/gcode"
)

type recoveryPhase int

const (
	recoverySkipping recoveryPhase = iota
	recoveryReplaying
	recoverySlowLayer
	recoveryDone
)

// linesPerSkip bounds the work done by one ReadLine while skipping ahead.
const linesPerSkip = 500

const (
	recoveryZFeed     = 600
	recoveryTravel    = 3000
	recoveryPrimeFeed = 300
)

// RecoveryStream restarts a print at a saved percentage. It skips the file up
// to that point while remembering temperatures, tool, fan and position, then
// heats, raises and homes, returns to the saved position, primes and carries
// on at a reduced feed rate until the next layer.
type RecoveryStream struct {
	source        Source
	settings      RecoverySettings
	pending       []string
	hotends       map[int]float64
	fanLine       string
	pos           gcode.Move
	bed           float64
	tool          int
	phase         recoveryPhase
	toolSeen      bool
	relativeMoves bool
	relativeE     bool
}

func NewRecoveryStream(source Source, settings RecoverySettings) *RecoveryStream {
	if settings.FeedRateRatio <= 0 {
		settings.FeedRateRatio = 1
	}
	return &RecoveryStream{
		source:   source,
		settings: settings,
		hotends:  make(map[int]float64),
		pos: gcode.Move{
			Position: gcode.Vec3{},
		},
	}
}

func (s *RecoveryStream) PercentComplete() float64 {
	return s.source.PercentComplete()
}

func (s *RecoveryStream) SetPrinterPosition(m gcode.Move) {
	s.source.SetPrinterPosition(m)
}

func (s *RecoveryStream) Close() error {
	return s.source.Close()
}

func (s *RecoveryStream) ReadLine() (string, bool) {
	switch s.phase {
	case recoverySkipping:
		for range linesPerSkip {
			if s.source.PercentComplete() >= s.settings.TargetPercent {
				s.pending = s.resumeSequence()
				s.phase = recoveryReplaying
				return "", true
			}
			line, ok := s.source.ReadLine()
			if !ok {
				s.phase = recoveryDone
				return "", false
			}
			s.remember(line)
		}
		return "", true
	case recoveryReplaying:
		if len(s.pending) > 0 {
			line := s.pending[0]
			s.pending = s.pending[1:]
			return line, true
		}
		s.phase = recoverySlowLayer
		return "", true
	case recoverySlowLayer:
		line, ok := s.source.ReadLine()
		if !ok || line == "" {
			return line, ok
		}
		if gcode.IsLayerChange(line) {
			s.phase = recoveryDone
			if s.pos.FeedRate > 0 {
				s.pending = []string{"G1 F" + gcode.FormatNumber(s.pos.FeedRate, 1)}
			}
			return line, true
		}
		if gcode.LineIsMovement(line) {
			if f, has := gcode.Parameter(line, 'F'); has {
				s.pos.FeedRate = f
				return gcode.ReplaceParameter(line, 'F', f*s.settings.FeedRateRatio), true
			}
		}
		return line, true
	default:
		if len(s.pending) > 0 {
			line := s.pending[0]
			s.pending = s.pending[1:]
			return line, true
		}
		return s.source.ReadLine()
	}
}

// remember folds a skipped line into the state the resume sequence restores.
func (s *RecoveryStream) remember(line string) {
	cmd := gcode.Command(line)
	switch cmd {
	case "M104", "M109":
		if t, ok := gcode.Parameter(line, 'S'); ok {
			index := s.tool
			if v, hasTool := gcode.Parameter(line, 'T'); hasTool {
				index = int(v)
			}
			s.hotends[index] = t
		}
	case "M140", "M190":
		if t, ok := gcode.Parameter(line, 'S'); ok {
			s.bed = t
		}
	case "M106", "M107":
		s.fanLine = gcode.StripComment(line)
	case "G90":
		s.relativeMoves = false
	case "G91":
		s.relativeMoves = true
	case "M82":
		s.relativeE = false
	case "M83":
		s.relativeE = true
	case "G92":
		s.pos = applySetPosition(line, s.pos)
	case "G0", "G1":
		prev := s.pos
		next := gcode.ParseMove(line, prev)
		if s.relativeMoves {
			delta := gcode.ParseMove(line, gcode.Move{})
			next.Position = prev.Position.Add(delta.Position)
		}
		if s.relativeE {
			if e, ok := gcode.Parameter(line, 'E'); ok {
				next.Extrusion = prev.Extrusion + e
			}
		}
		s.pos = next
	default:
		if tool, ok := gcode.ToolIndex(line); ok {
			s.tool = tool
			s.toolSeen = true
		}
	}
}

func (s *RecoveryStream) resumeSequence() []string {
	var lines []string
	fmtT := func(v float64) string { return gcode.FormatNumber(v, 1) }
	fmtP := func(v float64) string { return gcode.FormatNumber(v, 3) }

	tools := make([]int, 0, len(s.hotends))
	for i := range s.hotends {
		tools = append(tools, i)
	}
	slices.Sort(tools)

	// start every heater, then wait on each
	if s.bed > 0 {
		lines = append(lines, "M140 S"+fmtT(s.bed))
	}
	for _, i := range tools {
		lines = append(lines, "M104 T"+strconv.Itoa(i)+" S"+fmtT(s.hotends[i]))
	}
	if s.bed > 0 {
		lines = append(lines, "M190 S"+fmtT(s.bed))
	}
	for _, i := range tools {
		if s.hotends[i] > 0 {
			lines = append(lines, "M109 T"+strconv.Itoa(i)+" S"+fmtT(s.hotends[i]))
		}
	}

	raise := s.settings.RaiseZ
	lines = append(lines,
		"G90",
		"G92 Z0",
		"G1 Z"+fmtP(raise)+" F"+strconv.Itoa(recoveryZFeed),
	)
	if s.settings.ZHomesToMax {
		lines = append(lines, "G28")
	} else {
		lines = append(lines, "G28 X0 Y0", "G92 Z"+fmtP(s.pos.Position.Z+raise))
	}

	if s.toolSeen {
		lines = append(lines, "T"+strconv.Itoa(s.tool))
	}
	if s.fanLine != "" {
		lines = append(lines, s.fanLine)
	}

	p := s.pos.Position
	lines = append(lines,
		"G1 X"+fmtP(p.X)+" Y"+fmtP(p.Y)+" F"+strconv.Itoa(recoveryTravel),
		"G1 Z"+fmtP(p.Z)+" F"+strconv.Itoa(recoveryZFeed),
		"M82",
		"G92 E0",
		"G1 E"+gcode.FormatNumber(s.settings.PrimeLength, 5)+" F"+strconv.Itoa(recoveryPrimeFeed),
		"G92 E"+gcode.FormatNumber(s.pos.Extrusion, 5),
	)
	if s.pos.FeedRate > 0 {
		lines = append(lines, "G1 F"+gcode.FormatNumber(s.pos.FeedRate*s.settings.FeedRateRatio, 1))
	}
	if s.relativeMoves {
		lines = append(lines, "G91")
	}
	if s.relativeE {
		lines = append(lines, "M83")
	}
	return lines
}
