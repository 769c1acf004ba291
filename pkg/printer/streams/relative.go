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

import "github.com/printlink/printlink-core/pkg/gcode"

// RelativeToAbsoluteStream rewrites relative moves (G91) and relative
// extrusion (M83) into absolute coordinates so every stage above it can
// reason about destinations. While the printer position is unknown lines pass
// through untouched.
type RelativeToAbsoluteStream struct {
	link
	pos               tracker
	relativeMoves     bool
	relativeExtrusion bool
	// printerRelative is set when G91 reached the firmware untranslated.
	printerRelative bool
}

func NewRelativeToAbsoluteStream(source Stream) *RelativeToAbsoluteStream {
	return &RelativeToAbsoluteStream{
		link: link{source: source},
		pos:  newTracker(),
	}
}

func (s *RelativeToAbsoluteStream) ReadLine() (string, bool) {
	if s.printerRelative && s.pos.known() {
		s.printerRelative = false
		return "G90", true
	}

	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}

	switch gcode.Command(line) {
	case "G90":
		s.relativeMoves = false
		s.printerRelative = false
		return line, true
	case "G91":
		s.relativeMoves = true
		if !s.pos.known() {
			s.printerRelative = true
			return line, true
		}
		return "", true
	case "M82":
		s.relativeExtrusion = false
		return line, true
	case "M83":
		s.relativeExtrusion = true
		if isInf(s.pos.last.Extrusion) {
			return line, true
		}
		return "M82", true
	case "G28":
		s.pos.last = gcode.Nowhere
		return line, true
	}

	if !gcode.LineIsMovement(line) {
		s.pos.observe(line)
		return line, true
	}
	if !s.pos.known() {
		if !s.relativeMoves {
			s.pos.observe(line)
		}
		return line, true
	}

	out := line
	prev := s.pos.last
	next := gcode.ParseMove(line, prev)
	if s.relativeMoves {
		delta := gcode.ParseMove(line, gcode.Move{})
		next.Position = prev.Position.Add(delta.Position)
		for _, axis := range []struct {
			letter byte
			value  float64
		}{{'X', next.Position.X}, {'Y', next.Position.Y}, {'Z', next.Position.Z}} {
			if gcode.HasParameter(out, axis.letter) {
				out = gcode.ReplaceParameter(out, axis.letter, axis.value)
			}
		}
	}
	if s.relativeExtrusion && !isInf(prev.Extrusion) {
		if e, ok := gcode.Parameter(line, 'E'); ok {
			next.Extrusion = prev.Extrusion + e
			out = gcode.ReplaceParameter(out, 'E', next.Extrusion)
		}
	}
	s.pos.last = next
	return out, true
}

func (s *RelativeToAbsoluteStream) SetPrinterPosition(m gcode.Move) {
	s.pos.last = m
	s.source.SetPrinterPosition(m)
}
