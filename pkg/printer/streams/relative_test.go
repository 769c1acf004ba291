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
	"strconv"
	"testing"

	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRelativeToAbsolute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "relative moves become absolute",
			in:   []string{"G92 X0 Y0 Z0 E0", "G91", "G1 X5 Y5", "G1 X5", "G90", "G1 X1"},
			want: []string{"G92 X0 Y0 Z0 E0", "G1 X5 Y5", "G1 X10", "G90", "G1 X1"},
		},
		{
			name: "unknown position passes through",
			in:   []string{"G91", "G1 X5", "G92 X0 Y0 Z0", "G1 X1"},
			want: []string{"G91", "G1 X5", "G92 X0 Y0 Z0", "G90", "G1 X1"},
		},
		{
			name: "relative extrusion",
			in:   []string{"G92 X0 Y0 Z0 E0", "M83", "G1 X1 E0.5", "G1 X2 E0.5"},
			want: []string{"G92 X0 Y0 Z0 E0", "M82", "G1 X1 E0.5", "G1 X2 E1"},
		},
		{
			name: "homing forgets the position",
			in:   []string{"G92 X0 Y0 Z0", "G28", "G91", "G1 X1"},
			want: []string{"G92 X0 Y0 Z0", "G28", "G91", "G1 X1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewRelativeToAbsoluteStream(sourceOf(tt.in...))
			assert.Equal(t, tt.want, drain(t, s))
		})
	}
}

func TestRelativeToAbsoluteUsesReportedPosition(t *testing.T) {
	t.Parallel()

	s := NewRelativeToAbsoluteStream(sourceOf("G91", "G1 Z2"))
	s.SetPrinterPosition(gcode.Move{Position: gcode.Vec3{X: 1, Y: 2, Z: 3}})
	assert.Equal(t, []string{"G1 Z5"}, drain(t, s))
}

func TestPropertyRelativeMovesSumToAbsolute(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		deltas := rapid.SliceOfN(rapid.IntRange(-500, 500), 1, 30).Draw(t, "deltas")

		lines := []string{"G92 X0 Y0 Z0 E0", "G91"}
		want := 0
		for _, d := range deltas {
			lines = append(lines, "G1 X"+strconv.Itoa(d))
			want += d
		}
		s := NewRelativeToAbsoluteStream(sourceOf(lines...))

		pos := gcode.Move{}
		for range 1000 {
			line, ok := s.ReadLine()
			if !ok {
				break
			}
			if gcode.LineIsMovement(line) {
				pos = gcode.ParseMove(line, pos)
			}
		}
		if math.Abs(pos.Position.X-float64(want)) > 1e-9 {
			t.Fatalf("final X %v, want %d", pos.Position.X, want)
		}
	})
}
