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

// SoftwareEndstopStream clamps move targets to the configured bed volume.
type SoftwareEndstopStream struct {
	link
	min gcode.Vec3
	max gcode.Vec3
}

func NewSoftwareEndstopStream(source Stream, bedMin, bedMax gcode.Vec3) *SoftwareEndstopStream {
	return &SoftwareEndstopStream{link: link{source: source}, min: bedMin, max: bedMax}
}

func clamp(v, lo, hi float64) float64 {
	if hi <= lo {
		return v
	}
	return max(lo, min(hi, v))
}

func (s *SoftwareEndstopStream) ReadLine() (string, bool) {
	line, ok := s.source.ReadLine()
	if !ok || !gcode.LineIsMovement(line) {
		return line, ok
	}
	for _, axis := range []struct {
		letter byte
		lo, hi float64
	}{
		{'X', s.min.X, s.max.X},
		{'Y', s.min.Y, s.max.Y},
		{'Z', s.min.Z, s.max.Z},
	} {
		v, has := gcode.Parameter(line, axis.letter)
		if !has {
			continue
		}
		if c := clamp(v, axis.lo, axis.hi); c != v {
			line = gcode.ReplaceParameter(line, axis.letter, c)
		}
	}
	return line, true
}
