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

type heaterWait int

const (
	waitNone heaterWait = iota
	waitHotend
	waitBed
)

// WaitForTemperatureStream turns blocking heat commands (M109, M190) into
// their non-blocking forms and holds the stream until the heater is within
// tolerance. The firmware keeps answering while it heats, so temperatures
// keep updating and the print can still be paused or canceled.
type WaitForTemperatureStream struct {
	link
	printer   PrinterState
	tolerance float64
	target    float64
	index     int
	waiting   heaterWait
	// cooling waits for the heater to drop to target (the R form).
	cooling bool
}

func NewWaitForTemperatureStream(source Stream, printer PrinterState, tolerance float64) *WaitForTemperatureStream {
	return &WaitForTemperatureStream{
		link:      link{source: source},
		printer:   printer,
		tolerance: tolerance,
	}
}

// HeatingHotend reports whether the stream waits on an extruder.
func (s *WaitForTemperatureStream) HeatingHotend() bool {
	return s.waiting == waitHotend
}

// HeatingBed reports whether the stream waits on the bed.
func (s *WaitForTemperatureStream) HeatingBed() bool {
	return s.waiting == waitBed
}

// Cancel stops waiting; the stream continues with the next line.
func (s *WaitForTemperatureStream) Cancel() {
	s.waiting = waitNone
}

func (s *WaitForTemperatureStream) reached() bool {
	if s.printer == nil {
		return true
	}
	var actual float64
	switch s.waiting {
	case waitHotend:
		actual = s.printer.ActualHotendTemperature(s.index)
	case waitBed:
		actual = s.printer.ActualBedTemperature()
	default:
		return true
	}
	if s.cooling {
		return math.Abs(actual-s.target) <= s.tolerance || actual < s.target
	}
	return actual >= s.target-s.tolerance
}

func (s *WaitForTemperatureStream) ReadLine() (string, bool) {
	if s.waiting != waitNone {
		if !s.reached() {
			return "", true
		}
		s.waiting = waitNone
	}

	line, ok := s.source.ReadLine()
	if !ok || line == "" {
		return line, ok
	}

	var kind heaterWait
	var replacement string
	switch gcode.Command(line) {
	case "M109":
		kind, replacement = waitHotend, "M104"
	case "M190":
		kind, replacement = waitBed, "M140"
	default:
		return line, true
	}

	target, has := gcode.Parameter(line, 'S')
	cooling := false
	if !has {
		target, has = gcode.Parameter(line, 'R')
		cooling = has
	}
	out := replacement + line[len(gcode.Command(line)):]
	if !has || target <= 0 {
		return out, true
	}

	index := 0
	if kind == waitHotend {
		if t, hasTool := gcode.Parameter(line, 'T'); hasTool {
			index = int(t)
		}
	}
	s.waiting = kind
	s.target = target
	s.index = index
	s.cooling = cooling
	return out, true
}
