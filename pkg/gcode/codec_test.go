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
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFirstNumberAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		marker string
		line   string
		want   float64
		wantOK bool
	}{
		{name: "simple", marker: "X", line: "G1 X10.5 Y3", want: 10.5, wantOK: true},
		{name: "negative", marker: "Y", line: "G1 X10.5 Y-3", want: -3, wantOK: true},
		{name: "temperature", marker: "T:", line: "ok T:201.3 /210.0 B:60.1 /60.0", want: 201.3, wantOK: true},
		{name: "space after marker", marker: "T:", line: "T: 21.5", want: 21.5, wantOK: true},
		{name: "resend", marker: ":", line: "Resend: 42", want: 42, wantOK: true},
		{name: "missing marker", marker: "Z", line: "G1 X1", wantOK: false},
		{name: "marker without number", marker: "X", line: "G1 X Y2", wantOK: false},
		{name: "marker only in comment", marker: "Z", line: "G1 X1 ; Z5", wantOK: false},
		{name: "leading dot", marker: "E", line: "G1 E.25", want: 0.25, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FirstNumberAfter(tt.marker, tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestFirstNumberAfterFrom(t *testing.T) {
	t.Parallel()

	line := "T0:200.0 /200.0 T1:180.5 /185.0"
	v, ok := FirstNumberAfterFrom("T1:", line, 0)
	require.True(t, ok)
	assert.InDelta(t, 180.5, v, 1e-9)

	_, ok = FirstNumberAfterFrom("T0:", line, 10)
	assert.False(t, ok)

	_, ok = FirstNumberAfterFrom("T0:", line, 100)
	assert.False(t, ok)
}

func TestFirstStringAfter(t *testing.T) {
	t.Parallel()

	line := "FIRMWARE_NAME:Marlin 2.1.2 (Github) SOURCE_CODE_URL:github.com/MarlinFirmware/Marlin"
	name, ok := FirstStringAfter("FIRMWARE_NAME:", line, " ")
	require.True(t, ok)
	assert.Equal(t, "Marlin", name)

	_, ok = FirstStringAfter("MACHINE_TYPE:", line, " ")
	assert.False(t, ok)
}

func TestChecksum(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "N1 M110 N0*124", WithChecksum(1, "M110 N0"))
	assert.Equal(t, byte(0), Checksum(""))
}

func TestPropertyChecksumIsXOROfFramedLine(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.StringMatching(`[ -)+-~]{0,60}`).Draw(t, "line")
		index := rapid.IntRange(0, 1_000_000).Draw(t, "index")

		framed := WithChecksum(index, line)
		star := strings.LastIndexByte(framed, '*')
		if star < 0 {
			t.Fatalf("no checksum separator in %q", framed)
		}
		prefix := framed[:star]
		if prefix != "N"+strconv.Itoa(index)+" "+line {
			t.Fatalf("unexpected prefix %q", prefix)
		}
		var want byte
		for i := 0; i < len(prefix); i++ {
			want ^= prefix[i]
		}
		got, err := strconv.Atoi(framed[star+1:])
		if err != nil {
			t.Fatalf("checksum not numeric: %v", err)
		}
		if byte(got) != want {
			t.Fatalf("checksum %d, want %d", got, want)
		}
	})
}

func TestLineIsMovement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want bool
	}{
		{"G0 X1", true},
		{"G1 X1 Y2 E0.3", true},
		{"G10", false},
		{"G1", false},
		{"G28 X0", false},
		{"M104 S200", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LineIsMovement(tt.line), tt.line)
	}
}

func TestIsLayerChange(t *testing.T) {
	t.Parallel()

	assert.True(t, IsLayerChange(";LAYER:3"))
	assert.True(t, IsLayerChange("; LAYER:3"))
	assert.True(t, IsLayerChange("; layer 4, z = 0.8"))
	assert.False(t, IsLayerChange("G1 Z0.4 ;LAYER:3"))
}

func TestCommandClassification(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "M104", Command("M104 S200 ; heat"))
	assert.True(t, IsHoming("G28 X0 Y0"))
	assert.False(t, IsHoming("G280"))
	assert.True(t, IsHeatAndWait("M109 S210"))
	assert.True(t, IsHeatAndWait("M190 S60"))
	assert.False(t, IsHeatAndWait("M104 S210"))

	idx, ok := ToolIndex("T1")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = ToolIndex("TX")
	assert.False(t, ok)
}

func TestReplaceParameter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		want   string
		value  float64
		letter byte
	}{
		{name: "replace feed", line: "G1 X10 F1800", letter: 'F', value: 900, want: "G1 X10 F900"},
		{name: "replace middle", line: "G1 X10 Y5 E1.5", letter: 'Y', value: 7.25, want: "G1 X10 Y7.25 E1.5"},
		{name: "append missing", line: "G1 X10", letter: 'Z', value: 0.4, want: "G1 X10 Z0.4"},
		{name: "keeps comment", line: "G1 X10 ; perimeter", letter: 'E', value: 2, want: "G1 X10 E2 ; perimeter"},
		{name: "extrusion precision", line: "G1 E1", letter: 'E', value: 1.123456, want: "G1 E1.12346"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ReplaceParameter(tt.line, tt.letter, tt.value))
		})
	}
}

func TestParameter(t *testing.T) {
	t.Parallel()

	v, ok := Parameter("M104 T1 S215", 'S')
	require.True(t, ok)
	assert.InDelta(t, 215.0, v, 1e-9)

	// the command letter itself is not a parameter
	_, ok = Parameter("M104 S215", 'M')
	assert.False(t, ok)
	assert.False(t, HasParameter("G1 X1", 'E'))
}

func TestParameterAfterMatchingCommandLetter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		letter byte
		want   float64
		found  bool
	}{
		{name: "later word with the command letter", line: "T1 T2", letter: 'T', want: 2, found: true},
		{name: "command letter only", line: "T1 S5", letter: 'T'},
		{name: "G word after G command", line: "G29 G1", letter: 'G', want: 1, found: true},
		{name: "match inside a comment", line: "T0 ; T3", letter: 'T'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v, ok := Parameter(tt.line, tt.letter)
			assert.Equal(t, tt.found, ok)
			assert.InDelta(t, tt.want, v, 1e-9)
			assert.Equal(t, tt.found, HasParameter(tt.line, tt.letter))
		})
	}
}
