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

// ExtrusionMultiplierStream scales extrusion by a live ratio. Extruder
// positions are absolute at this point in the chain, so the ratio applies to
// the distance since the previous move, not to the coordinate.
type ExtrusionMultiplierStream struct {
	link
	ratio float64
	inE   float64
	outE  float64
}

func NewExtrusionMultiplierStream(source Stream, ratio float64) *ExtrusionMultiplierStream {
	if ratio <= 0 {
		ratio = 1
	}
	return &ExtrusionMultiplierStream{link: link{source: source}, ratio: ratio}
}

func (s *ExtrusionMultiplierStream) Ratio() float64 {
	return s.ratio
}

// SetRatio changes the multiplier from the next extruding move on.
func (s *ExtrusionMultiplierStream) SetRatio(ratio float64) {
	if ratio > 0 {
		s.ratio = ratio
	}
}

func (s *ExtrusionMultiplierStream) ReadLine() (string, bool) {
	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}
	e, has := gcode.Parameter(line, 'E')
	if !has {
		return line, true
	}
	switch {
	case gcode.Command(line) == "G92":
		s.inE, s.outE = e, e
		return line, true
	case gcode.LineIsMovement(line):
		s.outE += (e - s.inE) * s.ratio
		s.inE = e
		if s.outE == e {
			return line, true
		}
		return gcode.ReplaceParameter(line, 'E', s.outE), true
	default:
		return line, true
	}
}

func (s *ExtrusionMultiplierStream) SetPrinterPosition(m gcode.Move) {
	if !isInf(m.Extrusion) {
		s.inE, s.outE = m.Extrusion, m.Extrusion
	}
	s.source.SetPrinterPosition(m)
}

// FeedRateMultiplierStream scales feed rates by a live ratio. When the ratio
// changes the next move re-sends its feed rate so the change applies at once.
type FeedRateMultiplierStream struct {
	link
	ratio   float64
	inF     float64
	changed bool
}

func NewFeedRateMultiplierStream(source Stream, ratio float64) *FeedRateMultiplierStream {
	if ratio <= 0 {
		ratio = 1
	}
	return &FeedRateMultiplierStream{link: link{source: source}, ratio: ratio}
}

func (s *FeedRateMultiplierStream) Ratio() float64 {
	return s.ratio
}

func (s *FeedRateMultiplierStream) SetRatio(ratio float64) {
	if ratio > 0 && ratio != s.ratio {
		s.ratio = ratio
		s.changed = true
	}
}

func (s *FeedRateMultiplierStream) ReadLine() (string, bool) {
	line, ok := s.source.ReadLine()
	if !ok || line == "" || !gcode.LineIsMovement(line) {
		return line, ok
	}
	f, has := gcode.Parameter(line, 'F')
	if has {
		s.inF = f
	}
	if (!has && !s.changed) || s.inF <= 0 {
		return line, true
	}
	s.changed = false
	if s.ratio == 1 && has {
		return line, true
	}
	return gcode.ReplaceParameter(line, 'F', s.inF*s.ratio), true
}
