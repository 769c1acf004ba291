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

// BabyStepStream adds a live offset, usually a small Z tweak, to every move.
type BabyStepStream struct {
	link
	pos    tracker
	offset gcode.Vec3
	// dirty is set when the offset changed and the next move must carry
	// every axis.
	dirty bool
}

func NewBabyStepStream(source Stream, offset gcode.Vec3) *BabyStepStream {
	return &BabyStepStream{
		link:   link{source: source},
		pos:    newTracker(),
		offset: offset,
		dirty:  offset != gcode.Vec3{},
	}
}

// Offset currently applied.
func (s *BabyStepStream) Offset() gcode.Vec3 {
	return s.offset
}

// SetOffset replaces the offset; it takes effect on the next move.
func (s *BabyStepStream) SetOffset(v gcode.Vec3) {
	if v != s.offset {
		s.offset = v
		s.dirty = true
	}
}

// AddZ nudges the Z offset by dz.
func (s *BabyStepStream) AddZ(dz float64) {
	s.SetOffset(s.offset.Add(gcode.Vec3{Z: dz}))
}

func (s *BabyStepStream) ReadLine() (string, bool) {
	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}
	if gcode.IsHoming(line) {
		s.pos.last = gcode.Nowhere
		s.dirty = s.offset != gcode.Vec3{}
		return line, true
	}
	if !gcode.LineIsMovement(line) {
		s.pos.observe(line)
		return line, true
	}

	s.pos.observe(line)
	if s.offset == (gcode.Vec3{}) && !s.dirty {
		return line, true
	}
	if s.dirty && s.pos.known() {
		s.dirty = false
		dest := s.pos.last
		dest.Position = dest.Position.Add(s.offset)
		out := gcode.MovementLine(gcode.Command(line), gcode.Move{Position: dest.Position, Extrusion: gcode.Nowhere.Extrusion, FeedRate: gcode.Nowhere.FeedRate}, gcode.Nowhere)
		if e, has := gcode.Parameter(line, 'E'); has {
			out = gcode.ReplaceParameter(out, 'E', e)
		}
		if f, has := gcode.Parameter(line, 'F'); has {
			out = gcode.ReplaceParameter(out, 'F', f)
		}
		return out, true
	}
	for _, axis := range []struct {
		letter byte
		add    float64
	}{{'X', s.offset.X}, {'Y', s.offset.Y}, {'Z', s.offset.Z}} {
		if v, has := gcode.Parameter(line, axis.letter); has && axis.add != 0 {
			line = gcode.ReplaceParameter(line, axis.letter, v+axis.add)
		}
	}
	return line, true
}

func (s *BabyStepStream) SetPrinterPosition(m gcode.Move) {
	if positionKnown(m) {
		m.Position = m.Position.Sub(s.offset)
	}
	s.pos.last = m
	s.source.SetPrinterPosition(m)
}
