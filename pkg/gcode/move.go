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

package gcode

import (
	"math"
	"strings"

	gc "github.com/256dpi/gcode"
)

// Vec3 is a cartesian position in millimetres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale multiplies every component by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Length is the euclidean length of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Move is a printer destination: position, extruder position and feed rate
// in mm/min.
type Move struct {
	Position  Vec3    `json:"position"`
	Extrusion float64 `json:"extrusion"`
	FeedRate  float64 `json:"feedRate"`
}

// Nowhere marks a move whose position has never been established.
var Nowhere = Move{
	Position:  Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
	Extrusion: math.Inf(1),
	FeedRate:  math.Inf(1),
}

// IsNowhere reports whether m is the unknown-position sentinel.
func (m Move) IsNowhere() bool {
	return math.IsInf(m.Position.X, 1) &&
		math.IsInf(m.Position.Y, 1) &&
		math.IsInf(m.Position.Z, 1)
}

// Add combines two moves component-wise.
func (m Move) Add(o Move) Move {
	return Move{
		Position:  m.Position.Add(o.Position),
		Extrusion: m.Extrusion + o.Extrusion,
		FeedRate:  m.FeedRate + o.FeedRate,
	}
}

// Sub subtracts two moves component-wise.
func (m Move) Sub(o Move) Move {
	return Move{
		Position:  m.Position.Sub(o.Position),
		Extrusion: m.Extrusion - o.Extrusion,
		FeedRate:  m.FeedRate - o.FeedRate,
	}
}

// Div divides every component by d.
func (m Move) Div(d float64) Move {
	return Move{
		Position:  m.Position.Scale(1 / d),
		Extrusion: m.Extrusion / d,
		FeedRate:  m.FeedRate / d,
	}
}

// LengthSquared is the squared travel distance of the position part only.
func (m Move) LengthSquared() float64 {
	p := m.Position
	return p.X*p.X + p.Y*p.Y + p.Z*p.Z
}

// ParseMove applies the axis words present on a G0/G1/G92 line to prev and
// returns the resulting destination. Axes missing from the line keep prev's
// value.
func ParseMove(line string, prev Move) Move {
	next := prev
	code := StripComment(line)
	parsed, err := gc.ParseLine(code)
	if err != nil {
		// tolerate words the parser rejects, e.g. vendor extensions
		return parseMoveWords(code, next)
	}
	for _, word := range parsed.Codes {
		switch strings.ToUpper(word.Letter) {
		case "X":
			next.Position.X = word.Value
		case "Y":
			next.Position.Y = word.Value
		case "Z":
			next.Position.Z = word.Value
		case "E":
			next.Extrusion = word.Value
		case "F":
			next.FeedRate = word.Value
		}
	}
	return next
}

func parseMoveWords(line string, next Move) Move {
	if v, ok := Parameter(line, 'X'); ok {
		next.Position.X = v
	}
	if v, ok := Parameter(line, 'Y'); ok {
		next.Position.Y = v
	}
	if v, ok := Parameter(line, 'Z'); ok {
		next.Position.Z = v
	}
	if v, ok := Parameter(line, 'E'); ok {
		next.Extrusion = v
	}
	if v, ok := Parameter(line, 'F'); ok {
		next.FeedRate = v
	}
	return next
}

const moveEpsilon = 1e-6

// MovementLine renders a move from start to dest, emitting only the words
// that changed. cmd is the movement command, "G0" or "G1".
func MovementLine(cmd string, dest, start Move) string {
	var b strings.Builder
	b.WriteString(cmd)
	writeWord := func(letter byte, to, from float64) {
		if math.IsInf(to, 0) {
			return
		}
		if !math.IsInf(from, 0) && math.Abs(to-from) < moveEpsilon {
			return
		}
		b.WriteByte(' ')
		b.WriteByte(letter)
		b.WriteString(FormatNumber(to, precisionFor(letter)))
	}
	writeWord('X', dest.Position.X, start.Position.X)
	writeWord('Y', dest.Position.Y, start.Position.Y)
	writeWord('Z', dest.Position.Z, start.Position.Z)
	writeWord('E', dest.Extrusion, start.Extrusion)
	writeWord('F', dest.FeedRate, start.FeedRate)
	return b.String()
}
