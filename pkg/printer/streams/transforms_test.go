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
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolChange(t *testing.T) {
	t.Parallel()

	settings := Settings{
		ExtruderCount:         2,
		ToolOffsets:           []gcode.Vec3{{}, {X: 10}},
		BeforeToolchangeGCode: "M117 leaving [previous_tool]",
		AfterToolchangeGCode:  "M117 now [tool]",
	}
	s := NewToolChangeStream(sourceOf("G1 X5 Y5 Z0.2 F1200", "T0", "T1", "G1 X6"), settings)

	assert.Equal(t, []string{
		"G1 X5 Y5 Z0.2 F1200",
		"T0",
		"M117 leaving 0",
		"T1",
		"M117 now 1",
		"G1 X15 Y5 Z0.2",
		"G1 X16",
	}, drain(t, s))
	assert.Equal(t, 1, s.ActiveTool())
}

func TestToolSpeed(t *testing.T) {
	t.Parallel()

	settings := Settings{ToolSpeedRatios: []float64{1, 0.5}}
	s := NewToolSpeedStream(sourceOf("G1 X1 E1 F1000", "T1", "G1 X2 E2 F1000", "G0 X3 F1000"), settings)
	assert.Equal(t, []string{"G1 X1 E1 F1000", "T1", "G1 X2 E2 F500", "G0 X3 F1000"}, drain(t, s))
}

func TestBabySteps(t *testing.T) {
	t.Parallel()

	src := sourceOf("G1 X1 Y1 Z0.2 F600", "G1 X2 Z0.4", "G1 X3", "G1 X4")
	s := NewBabyStepStream(src, gcode.Vec3{Z: 0.1})

	assert.Equal(t, []string{"G1 X1 Y1 Z0.3 F600", "G1 X2 Z0.5"}, take(t, s, 2))

	s.AddZ(-0.1)
	assert.Equal(t, gcode.Vec3{}, s.Offset())
	assert.Equal(t, []string{"G1 X3 Y1 Z0.4", "G1 X4"}, drain(t, s))
}

func TestMaxLengthSplitsLongMoves(t *testing.T) {
	t.Parallel()

	s := NewMaxLengthStream(sourceOf("G92 X0 Y0 Z0 E0", "G1 X10 E2 F1200", "G1 X12 E2.4"), 5)
	assert.Equal(t, []string{
		"G92 X0 Y0 Z0 E0",
		"G1 X5 E1 F1200",
		"G1 X10 E2",
		"G1 X12 E2.4",
	}, drain(t, s))
}

type tiltLeveler struct{}

func (tiltLeveler) Apply(p gcode.Vec3) gcode.Vec3 {
	return gcode.Vec3{X: p.X, Y: p.Y, Z: p.Z + p.X/100}
}

func TestLeveling(t *testing.T) {
	t.Parallel()

	s := NewLevelingStream(sourceOf("G28", "G1 X0 Y0 Z0.2 F1200", "G1 X10 E1"), tiltLeveler{})
	assert.Equal(t, []string{"G28", "G1 X0 Y0 Z0.2 F1200", "G1 X10 Z0.3 E1"}, drain(t, s))
}

func TestWaitForTemperature(t *testing.T) {
	t.Parallel()

	printer := newFakePrinter()
	printer.hotends[0] = 20
	s := NewWaitForTemperatureStream(sourceOf("M109 S200", "G1 X1", "M190 S60", "M109 S0", "M109 R50"), printer, 3)

	line, ok := s.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "M104 S200", line)
	assert.True(t, s.HeatingHotend())

	line, ok = s.ReadLine()
	require.True(t, ok)
	assert.Empty(t, line, "held until the hotend is hot")

	printer.hotends[0] = 198
	assert.Equal(t, []string{"G1 X1", "M140 S60"}, take(t, s, 2))
	assert.True(t, s.HeatingBed())

	s.Cancel()
	assert.False(t, s.HeatingBed())

	printer.hotends[0] = 100
	assert.Equal(t, []string{"M104 S0", "M104 R50"}, take(t, s, 2))
	line, _ = s.ReadLine()
	assert.Empty(t, line, "cooling waits until at or below the target")

	printer.hotends[0] = 52
	_, ok = s.ReadLine()
	assert.False(t, ok)
}

func TestExtrusionMultiplier(t *testing.T) {
	t.Parallel()

	s := NewExtrusionMultiplierStream(sourceOf("G92 E0", "G1 X1 E1", "G1 X2 E3", "G92 E0", "G1 E1"), 2)
	assert.Equal(t, []string{"G92 E0", "G1 X1 E2", "G1 X2 E6", "G92 E0", "G1 E2"}, drain(t, s))
}

func TestFeedRateMultiplier(t *testing.T) {
	t.Parallel()

	s := NewFeedRateMultiplierStream(sourceOf("G1 X1 F1000", "G1 X2", "G1 X3", "G1 X4 F500"), 1)
	assert.Equal(t, []string{"G1 X1 F1000"}, take(t, s, 1))

	s.SetRatio(2)
	assert.InDelta(t, 2.0, s.Ratio(), 1e-9)
	assert.Equal(t, []string{"G1 X2 F2000", "G1 X3", "G1 X4 F1000"}, drain(t, s))
}

func TestRequestTemperatures(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	s := NewRequestTemperaturesStream(sourceOf("G1 X1", "G1 X2", "G1 X3"), clock, time.Second)

	assert.Equal(t, []string{"M105", "G1 X1"}, take(t, s, 2))

	clock.Advance(time.Second)
	assert.Equal(t, []string{"M105", "G1 X2"}, take(t, s, 2))

	clock.Advance(500 * time.Millisecond)
	s.Requested()
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"G1 X3"}, take(t, s, 1))
}

func TestSoftwareEndstops(t *testing.T) {
	t.Parallel()

	s := NewSoftwareEndstopStream(
		sourceOf("G1 X-5 Y250 Z10", "G1 X100", "M104 S200"),
		gcode.Vec3{}, gcode.Vec3{X: 200, Y: 200, Z: 180},
	)
	assert.Equal(t, []string{"G1 X0 Y200 Z10", "G1 X100", "M104 S200"}, drain(t, s))
}

func TestRemoveNOPs(t *testing.T) {
	t.Parallel()

	s := NewRemoveNOPsStream(sourceOf("; comment", "G1 ; nothing", "G1 X1 ; move", PauseMarker, "M105", "g0"))
	assert.Equal(t, []string{"G1 X1", PauseMarker, "M105"}, drain(t, s))
}

func TestRemoveNOPsSkipsCommentRunsInOneRead(t *testing.T) {
	t.Parallel()

	s := NewRemoveNOPsStream(sourceOf("; header", "; generated by slicer", "G1", "G0 ; travel", "M105"))
	line, ok := s.ReadLine()
	assert.True(t, ok)
	assert.Equal(t, "M105", line)
}

func TestRewriteStream(t *testing.T) {
	t.Parallel()

	table, err := gcode.ParseRewriteTable(`"^M106","M106 P1,M117 fan"`)
	require.NoError(t, err)

	s := NewRewriteStream(sourceOf("M106 S255", "G1 X1"), table)
	assert.Equal(t, []string{"M106 P1 S255", "M117 fan", "G1 X1"}, drain(t, s))
}
