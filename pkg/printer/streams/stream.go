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

// Package streams implements the G-code filter chain that sits between a
// print source and the connection's write loop. Every stage wraps the stage
// below it and is pulled from the top, one line per call.
//
// Stages are not safe for concurrent use; the connection drives the whole
// chain under its own lock.
package streams

import (
	"math"
	"strings"

	"github.com/printlink/printlink-core/pkg/gcode"
)

// Stream is one stage of the filter chain.
type Stream interface {
	// ReadLine returns the next line to send. An empty line with ok set means
	// nothing is ready yet and the caller should ask again later. ok is false
	// once the stream is exhausted.
	ReadLine() (line string, ok bool)
	// SetPrinterPosition resynchronises position tracking after the
	// firmware reported where it really is.
	SetPrinterPosition(m gcode.Move)
	Close() error
}

// Source is the bottom of a chain.
type Source interface {
	Stream
	PercentComplete() float64
}

// PrinterState is the live printer data stages consult.
type PrinterState interface {
	ActualHotendTemperature(index int) float64
	TargetHotendTemperature(index int) float64
	ActualBedTemperature() float64
	TargetBedTemperature() float64
}

// link forwards position updates and Close to the wrapped stage.
type link struct {
	source Stream
}

func (l *link) SetPrinterPosition(m gcode.Move) {
	l.source.SetPrinterPosition(m)
}

func (l *link) Close() error {
	return l.source.Close()
}

// tracker follows the absolute destination of the lines passing a stage.
type tracker struct {
	last gcode.Move
}

func newTracker() tracker {
	return tracker{last: gcode.Nowhere}
}

func (t *tracker) observe(line string) {
	switch {
	case gcode.LineIsMovement(line):
		t.last = gcode.ParseMove(line, t.last)
	case gcode.Command(line) == "G92":
		t.last = applySetPosition(line, t.last)
	}
}

func (t *tracker) known() bool {
	return positionKnown(t.last)
}

func positionKnown(m gcode.Move) bool {
	return !isInf(m.Position.X) && !isInf(m.Position.Y) && !isInf(m.Position.Z)
}

func isInf(v float64) bool {
	return math.IsInf(v, 0)
}

// applySetPosition handles G92; a bare G92 zeroes every axis.
func applySetPosition(line string, prev gcode.Move) gcode.Move {
	code := gcode.StripComment(line)
	if strings.TrimSpace(strings.TrimPrefix(code, "G92")) == "" {
		prev.Position = gcode.Vec3{}
		prev.Extrusion = 0
		return prev
	}
	feed := prev.FeedRate
	next := gcode.ParseMove(code, prev)
	next.FeedRate = feed
	return next
}

// splitLines breaks a multi-line setting into trimmed, non-empty lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, `\n`, "\n")
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
