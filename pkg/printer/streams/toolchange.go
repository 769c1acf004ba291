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
	"strconv"
	"strings"

	"github.com/printlink/printlink-core/pkg/gcode"
)

// ToolChangeStream wraps tool selects in the configured before and after
// G-code, applies per-tool XYZ offsets to moves and returns the head to its
// last position once the new tool is active.
type ToolChangeStream struct {
	link
	before  string
	after   string
	offsets []gcode.Vec3
	pending []string
	pos     tracker
	active  int
}

func NewToolChangeStream(source Stream, settings Settings) *ToolChangeStream {
	return &ToolChangeStream{
		link:    link{source: source},
		before:  settings.BeforeToolchangeGCode,
		after:   settings.AfterToolchangeGCode,
		offsets: settings.ToolOffsets,
		pos:     newTracker(),
	}
}

// ActiveTool is the index of the tool currently selected.
func (s *ToolChangeStream) ActiveTool() int {
	return s.active
}

func (s *ToolChangeStream) offset(tool int) gcode.Vec3 {
	if tool < 0 || tool >= len(s.offsets) {
		return gcode.Vec3{}
	}
	return s.offsets[tool]
}

// expand substitutes [tool] and [previous_tool] in a G-code template.
func expand(template string, tool, previous int) []string {
	r := strings.NewReplacer(
		"[tool]", strconv.Itoa(tool),
		"[previous_tool]", strconv.Itoa(previous),
	)
	return splitLines(r.Replace(template))
}

func (s *ToolChangeStream) ReadLine() (string, bool) {
	if len(s.pending) > 0 {
		line := s.pending[0]
		s.pending = s.pending[1:]
		return line, true
	}

	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}

	if tool, isTool := gcode.ToolIndex(line); isTool {
		if tool == s.active {
			return line, true
		}
		previous := s.active
		s.active = tool
		lines := expand(s.before, tool, previous)
		lines = append(lines, line)
		lines = append(lines, expand(s.after, tool, previous)...)
		if s.pos.known() {
			back := s.pos.last
			back.Position = back.Position.Add(s.offset(tool))
			back.Extrusion = gcode.Nowhere.Extrusion
			back.FeedRate = gcode.Nowhere.FeedRate
			lines = append(lines, gcode.MovementLine("G1", back, gcode.Nowhere))
		}
		s.pending = lines[1:]
		return lines[0], true
	}

	s.pos.observe(line)
	off := s.offset(s.active)
	if off == (gcode.Vec3{}) || !gcode.LineIsMovement(line) {
		return line, true
	}
	if v, has := gcode.Parameter(line, 'X'); has {
		line = gcode.ReplaceParameter(line, 'X', v+off.X)
	}
	if v, has := gcode.Parameter(line, 'Y'); has {
		line = gcode.ReplaceParameter(line, 'Y', v+off.Y)
	}
	if v, has := gcode.Parameter(line, 'Z'); has {
		line = gcode.ReplaceParameter(line, 'Z', v+off.Z)
	}
	return line, true
}

func (s *ToolChangeStream) SetPrinterPosition(m gcode.Move) {
	if positionKnown(m) {
		m.Position = m.Position.Sub(s.offset(s.active))
	}
	s.pos.last = m
	s.source.SetPrinterPosition(m)
}

// ToolSpeedStream scales the feed rate of extruding moves by the ratio
// configured for the active tool.
type ToolSpeedStream struct {
	link
	ratios []float64
	active int
}

func NewToolSpeedStream(source Stream, settings Settings) *ToolSpeedStream {
	return &ToolSpeedStream{
		link:   link{source: source},
		ratios: settings.ToolSpeedRatios,
	}
}

func (s *ToolSpeedStream) ratio() float64 {
	if s.active < 0 || s.active >= len(s.ratios) || s.ratios[s.active] <= 0 {
		return 1
	}
	return s.ratios[s.active]
}

func (s *ToolSpeedStream) ReadLine() (string, bool) {
	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}
	if tool, isTool := gcode.ToolIndex(line); isTool {
		s.active = tool
		return line, true
	}
	ratio := s.ratio()
	if ratio == 1 || !gcode.LineIsMovement(line) || !gcode.HasParameter(line, 'E') {
		return line, true
	}
	if f, has := gcode.Parameter(line, 'F'); has {
		line = gcode.ReplaceParameter(line, 'F', f*ratio)
	}
	return line, true
}
