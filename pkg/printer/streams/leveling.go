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

// Leveler maps an ideal position onto the measured bed surface.
type Leveler interface {
	Apply(p gcode.Vec3) gcode.Vec3
}

// LevelingStream rewrites moves through a Leveler. Moves made before the
// position is known pass through untouched.
type LevelingStream struct {
	link
	leveler Leveler
	pos     tracker
	sent    gcode.Move
}

func NewLevelingStream(source Stream, leveler Leveler) *LevelingStream {
	return &LevelingStream{
		link:    link{source: source},
		leveler: leveler,
		pos:     newTracker(),
		sent:    gcode.Nowhere,
	}
}

func (s *LevelingStream) ReadLine() (string, bool) {
	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}
	if gcode.IsHoming(line) {
		s.pos.last = gcode.Nowhere
		s.sent = gcode.Nowhere
		return line, true
	}
	if !gcode.LineIsMovement(line) {
		s.pos.observe(line)
		if gcode.Command(line) == "G92" {
			s.sent = applySetPosition(line, s.sent)
		}
		return line, true
	}

	s.pos.observe(line)
	if !s.pos.known() {
		s.sent = gcode.ParseMove(line, s.sent)
		return line, true
	}

	dest := s.pos.last
	dest.Position = s.leveler.Apply(dest.Position)
	out := gcode.MovementLine(gcode.Command(line), dest, s.sent)
	s.sent = dest
	return out, true
}

func (s *LevelingStream) SetPrinterPosition(m gcode.Move) {
	s.sent = m
	s.pos.last = m
	s.source.SetPrinterPosition(m)
}
