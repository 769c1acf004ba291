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

package printer

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Axis
		wantErr bool
	}{
		{in: "", want: AxisAll},
		{in: "x", want: AxisX},
		{in: "XZ", want: AxisX | AxisZ},
		{in: "xyz", want: AxisAll},
		{in: "xa", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseAxes(tt.in)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidAxis, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMoveTargetLine(t *testing.T) {
	t.Parallel()

	x, z, e := 10.5, 0.2, 1.25
	assert.Equal(t, "G1 X10.5 Z0.2 E1.25 F1200", MoveTarget{X: &x, Z: &z, E: &e, FeedRate: 1200}.line())
	assert.Equal(t, "G1", MoveTarget{}.line())
}

func TestExpectedAckWait(t *testing.T) {
	t.Parallel()

	assert.Equal(t, moveAckWait, expectedAckWait("G1 X10", 0))
	assert.Equal(t, 3*moveAckWait, expectedAckWait("G1 X10", 2))
	assert.Equal(t, heatAckWait, expectedAckWait("M109 S200", 3))
	assert.Equal(t, homingAckWait, expectedAckWait("G28", 0))
	assert.Equal(t, defaultAckWait, expectedAckWait("M115", 0))
}

func TestObserveSent(t *testing.T) {
	t.Parallel()
	clock := clockwork.NewFakeClock()
	c, err := NewConnection(Options{Settings: testSettings(), Clock: clock})
	require.NoError(t, err)
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range []string{"M104 S210", "M140 S60", "M106 S128", "T1", "M104 S190", "G92 X0 Y0 Z0 E0", "G1 X10 F1200"} {
		c.observeSentLocked(l)
	}
	assert.InDelta(t, 210.0, c.rt.hotendTarget[0], 1e-9)
	assert.InDelta(t, 190.0, c.rt.hotendTarget[1], 1e-9)
	assert.InDelta(t, 60.0, c.rt.bedTarget, 1e-9)
	assert.InDelta(t, 128.0, c.rt.fanSpeed, 1e-9)
	assert.Equal(t, 1, c.rt.activeExtruder)
	assert.InDelta(t, 10.0, c.rt.destination.Position.X, 1e-9)

	c.observeSentLocked("G91")
	c.observeSentLocked("G1 X5 E1")
	assert.InDelta(t, 15.0, c.rt.destination.Position.X, 1e-9)
	assert.InDelta(t, 1.0, c.rt.destination.Extrusion, 1e-9)

	c.observeSentLocked("G92")
	assert.Equal(t, gcode.Vec3{}, c.rt.destination.Position)

	c.observeSentLocked("M107")
	assert.Zero(t, c.rt.fanSpeed)

	c.observeSentLocked("M114")
	assert.True(t, c.waitingForPosition)
	assert.Equal(t, clock.Now(), c.positionWaitStarted)
}

func TestPrintElapsedIsZeroWhenIdle(t *testing.T) {
	t.Parallel()
	c, err := NewConnection(Options{Settings: testSettings()})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), c.PrintElapsed())
	assert.Nil(t, c.Job())
	assert.Equal(t, "disconnected", c.Status().State)
}
