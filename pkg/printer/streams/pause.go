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
	"strings"

	"github.com/printlink/printlink-core/pkg/gcode"
)

// PauseMarker is emitted after the pause G-code. The write loop intercepts it,
// never transmits it, and treats it as the point where the printer is
// actually paused.
const PauseMarker = "@pause_reached"

// PauseReason says why a pause was requested.
type PauseReason int

const (
	PauseUserRequested PauseReason = iota
	PauseLayerReached
	PauseGCodeRequest
	PauseFirmwareError
)

func (r PauseReason) String() string {
	switch r {
	case PauseUserRequested:
		return "user"
	case PauseLayerReached:
		return "layer"
	case PauseGCodeRequest:
		return "gcode"
	case PauseFirmwareError:
		return "firmware_error"
	default:
		return "unknown"
	}
}

type pauseState int

const (
	pauseRunning pauseState = iota
	pausePending
	pausePaused
)

// PauseStream injects the pause and resume sequences and holds the print in
// between. It tracks the absolute destination of the source so resuming
// returns the head to where the print left off.
type PauseStream struct {
	link
	onPause       func(PauseReason)
	pauseGCode    []string
	resumeGCode   []string
	pauseLayers   []int
	pending       []string
	pos           tracker
	resumeAt      gcode.Move
	resumeFeed    float64
	layer         int
	state         pauseState
	relativeMoves bool
	// relativeExtrusion mirrors M82/M83 for extruder tracking
	relativeExtrusion bool
}

// NewPauseStream wraps source. onPause, when set, is called whenever a pause
// is started from inside the stream, e.g. on a layer or an M226.
func NewPauseStream(source Stream, settings Settings, onPause func(PauseReason)) *PauseStream {
	settings = settings.withDefaults()
	return &PauseStream{
		link:        link{source: source},
		onPause:     onPause,
		pauseGCode:  splitLines(settings.PauseGCode),
		resumeGCode: splitLines(settings.ResumeGCode),
		pauseLayers: slices.Clone(settings.PauseLayers),
		resumeFeed:  settings.ResumeFeedRate,
		pos:         newTracker(),
		resumeAt:    gcode.Nowhere,
	}
}

// DoPause queues the pause G-code, a position request and the marker. It is
// a no-op while a pause is already under way.
func (s *PauseStream) DoPause(reason PauseReason) {
	if s.state != pauseRunning {
		return
	}
	s.state = pausePending
	s.resumeAt = s.pos.last
	lines := make([]string, 0, len(s.pauseGCode)+2)
	lines = append(lines, s.pauseGCode...)
	lines = append(lines, "M114", PauseMarker)
	s.pending = append(lines, s.pending...)
	if s.onPause != nil {
		s.onPause(reason)
	}
}

// Reached is called once the marker has been pulled through the chain.
func (s *PauseStream) Reached() {
	if s.state == pausePending {
		s.state = pausePaused
	}
}

// Paused reports whether the stream is holding the print.
func (s *PauseStream) Paused() bool {
	return s.state == pausePaused
}

// Pausing reports whether a pause has been requested but not yet reached.
func (s *PauseStream) Pausing() bool {
	return s.state == pausePending
}

// ResumePosition is where the print will continue from.
func (s *PauseStream) ResumePosition() gcode.Move {
	return s.resumeAt
}

// Resume restores extruder and head position, then runs the resume G-code.
func (s *PauseStream) Resume() {
	if s.state == pauseRunning {
		return
	}
	s.state = pauseRunning

	var lines []string
	at := s.resumeAt
	if positionKnown(at) {
		lines = append(lines, "G90")
		if !isInf(at.Extrusion) {
			lines = append(lines, "G92 E"+gcode.FormatNumber(at.Extrusion, 5))
		}
		jog := at
		jog.Position = at.Position.Add(gcode.Vec3{X: 0.01, Y: 0.01, Z: 0.01})
		jog.Extrusion = gcode.Nowhere.Extrusion
		jog.FeedRate = s.resumeFeed
		lines = append(lines, gcode.MovementLine("G1", jog, gcode.Nowhere))
		exact := at
		exact.Extrusion = gcode.Nowhere.Extrusion
		if isInf(exact.FeedRate) || exact.FeedRate <= 0 {
			exact.FeedRate = s.resumeFeed
		}
		lines = append(lines, gcode.MovementLine("G1", exact, gcode.Nowhere))
	}
	lines = append(lines, s.resumeGCode...)
	if s.relativeMoves {
		lines = append(lines, "G91")
	}
	s.pending = append(lines, s.pending...)
}

// Cancel drops any pause in progress and the lines waiting behind it.
func (s *PauseStream) Cancel() {
	s.state = pauseRunning
	s.pending = nil
}

// Layer is the 1-based number of the layer currently being read.
func (s *PauseStream) Layer() int {
	return s.layer
}

func (s *PauseStream) ReadLine() (string, bool) {
	if len(s.pending) > 0 {
		line := s.pending[0]
		s.pending = s.pending[1:]
		return line, true
	}
	if s.state == pausePaused {
		return "", true
	}

	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}

	switch cmd := gcode.Command(line); {
	case cmd == "M226" || (strings.HasPrefix(line, "@pause") && line != PauseMarker):
		s.DoPause(PauseGCodeRequest)
		return "", true
	case gcode.IsLayerChange(line):
		s.layer++
		if slices.Contains(s.pauseLayers, s.layer) {
			s.DoPause(PauseLayerReached)
			s.pending = append(s.pending, line)
			return "", true
		}
		return line, true
	case cmd == "G90":
		s.relativeMoves = false
	case cmd == "G91":
		s.relativeMoves = true
	case cmd == "M82":
		s.relativeExtrusion = false
	case cmd == "M83":
		s.relativeExtrusion = true
	}

	s.observe(line)
	return line, true
}

func (s *PauseStream) observe(line string) {
	if !gcode.LineIsMovement(line) || (!s.relativeMoves && !s.relativeExtrusion) {
		s.pos.observe(line)
		return
	}
	prev := s.pos.last
	next := gcode.ParseMove(line, prev)
	if s.relativeMoves {
		delta := gcode.ParseMove(line, gcode.Move{})
		next.Position = prev.Position.Add(delta.Position)
	}
	if s.relativeExtrusion {
		if e, ok := gcode.Parameter(line, 'E'); ok {
			next.Extrusion = prev.Extrusion + e
		}
	}
	s.pos.last = next
}

func (s *PauseStream) SetPrinterPosition(m gcode.Move) {
	if s.state == pauseRunning {
		s.pos.last = m
	}
	s.source.SetPrinterPosition(m)
}
