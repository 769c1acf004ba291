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
	"math"

	"github.com/printlink/printlink-core/pkg/gcode"
)

// maxSegments bounds how many pieces a single move is cut into.
const maxSegments = 100

// MaxLengthStream cuts long moves into segments no longer than maxLength so
// transforms such as bed leveling can follow the bed surface.
type MaxLengthStream struct {
	link
	pending   []string
	pos       tracker
	maxLength float64
}

func NewMaxLengthStream(source Stream, maxLength float64) *MaxLengthStream {
	return &MaxLengthStream{
		link:      link{source: source},
		pos:       newTracker(),
		maxLength: maxLength,
	}
}

func (s *MaxLengthStream) ReadLine() (string, bool) {
	if len(s.pending) > 0 {
		line := s.pending[0]
		s.pending = s.pending[1:]
		return line, true
	}

	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}
	if gcode.IsHoming(line) {
		s.pos.last = gcode.Nowhere
		return line, true
	}
	if !gcode.LineIsMovement(line) || !s.pos.known() || isInf(s.pos.last.Extrusion) {
		s.pos.observe(line)
		return line, true
	}

	start := s.pos.last
	dest := gcode.ParseMove(line, start)
	s.pos.last = dest

	delta := dest.Sub(start)
	length := math.Sqrt(delta.LengthSquared())
	if length <= s.maxLength {
		return line, true
	}

	n := int(math.Ceil(length / s.maxLength))
	n = min(n, maxSegments)
	cmd := gcode.Command(line)
	prev := start
	lines := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		step := delta.Div(float64(n) / float64(i))
		next := start.Add(step)
		next.FeedRate = dest.FeedRate
		if i == n {
			next = dest
		}
		lines = append(lines, gcode.MovementLine(cmd, next, prev))
		prev = next
	}
	s.pending = lines[1:]
	return lines[0], true
}

func (s *MaxLengthStream) SetPrinterPosition(m gcode.Move) {
	s.pos.last = m
	s.source.SetPrinterPosition(m)
}
