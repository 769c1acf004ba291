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

package emulator

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, e *Emulator) string {
	t.Helper()
	require.NoError(t, e.SetReadTimeout(10*time.Millisecond))
	var sb strings.Builder
	buf := make([]byte, 256)
	for {
		n, err := e.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			return sb.String()
		}
		sb.Write(buf[:n])
	}
}

func send(t *testing.T, e *Emulator, lines ...string) {
	t.Helper()
	for _, l := range lines {
		_, err := e.Write([]byte(l + "\n"))
		require.NoError(t, err)
	}
}

func TestBootMessage(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	assert.Equal(t, "start\n", readAll(t, e))

	require.NoError(t, e.ResetBoard())
	assert.Equal(t, "start\n", readAll(t, e))
}

func TestNumberedLines(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	readAll(t, e)

	send(t, e, "M110 N0", gcode.WithChecksum(1, "G1 X5"), gcode.WithChecksum(2, "M114"))
	out := readAll(t, e)
	assert.Contains(t, out, "X:5.00 Y:0.00 Z:0.00")
	assert.Equal(t, 3, strings.Count(out, "ok"))
	assert.Equal(t, 2, e.LastLine())
	assert.Equal(t, []string{"M110 N0", "G1 X5", "M114"}, e.Commands())
}

func TestOutOfOrderLineAsksForResend(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	readAll(t, e)

	send(t, e, gcode.WithChecksum(1, "G1 X1"), gcode.WithChecksum(3, "G1 X3"))
	out := readAll(t, e)
	assert.Contains(t, out, "Resend: 2")
	assert.Equal(t, 1, e.LastLine())
	assert.InDelta(t, 1.0, e.Position().Position.X, 1e-9)
}

func TestChecksumMismatch(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	readAll(t, e)

	send(t, e, "N1 G1 X1*0")
	assert.Contains(t, readAll(t, e), "Resend: 1")
	assert.Empty(t, e.Commands())
}

func TestScripting(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	readAll(t, e)

	e.DropAckOnce(1)
	send(t, e, gcode.WithChecksum(1, "G28"))
	assert.Empty(t, readAll(t, e))

	e.ResendOnce(2, 1)
	send(t, e, gcode.WithChecksum(2, "G1 X1"))
	out := readAll(t, e)
	assert.Contains(t, out, "Resend: 1")
	assert.Equal(t, 0, e.LastLine())

	e.Inject("Error:Printer halted. kill() called!")
	assert.Contains(t, readAll(t, e), "kill() called")

	e.SetSilent(true)
	send(t, e, "M105")
	assert.Empty(t, readAll(t, e))
}

func TestRelativeMoves(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	send(t, e, "G1 X10 Y10", "G91", "G1 X5 E2", "G90", "G1 Y1")
	pos := e.Position()
	assert.InDelta(t, 15.0, pos.Position.X, 1e-9)
	assert.InDelta(t, 1.0, pos.Position.Y, 1e-9)
	assert.InDelta(t, 2.0, pos.Extrusion, 1e-9)
}

func TestTemperatures(t *testing.T) {
	t.Parallel()
	p := DefaultProfile()
	p.Extruders = 2
	e := New(p)
	readAll(t, e)

	send(t, e, "M104 T1 S210", "M140 S60", "M105")
	out := readAll(t, e)
	assert.Contains(t, out, "T1:210.00 /210.00")
	assert.Contains(t, out, "B:60.00 /60.00")
}

func TestSdPrint(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	readAll(t, e)

	send(t, e, "M23 missing.gco")
	assert.Contains(t, readAll(t, e), "open failed")

	send(t, e, "M23 cube.gco", "M24")
	assert.Contains(t, readAll(t, e), "File selected")

	var out string
	for range 4 {
		send(t, e, "M27")
		out = readAll(t, e)
	}
	assert.Contains(t, out, "SD printing byte 1000/1000")
	assert.Contains(t, out, "Done printing file")

	send(t, e, "M30 cube.gco")
	assert.Contains(t, readAll(t, e), "File deleted")
	assert.Equal(t, 1, e.CountCommand("M30"))
}

func TestCustomReplies(t *testing.T) {
	t.Parallel()
	p, err := ReadProfile(strings.NewReader(`
name: prusa
firmware_name: Prusa-Firmware 3.13
extruders: 0
replies:
  M503: "echo:  G21\necho:  M92 X100"
`))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Extruders)
	assert.Equal(t, "start", p.StartMessage)

	e := New(p)
	readAll(t, e)
	send(t, e, "M503", "M115")
	out := readAll(t, e)
	assert.Contains(t, out, "echo:  M92 X100")
	assert.Contains(t, out, "FIRMWARE_NAME:Prusa-Firmware 3.13")
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p.yaml", []byte("repetier: true\nsd_step: 0\n"), 0o644))

	p, err := LoadProfile(fs, "/p.yaml")
	require.NoError(t, err)
	assert.True(t, p.Repetier)
	assert.Equal(t, 1, p.SdStep)

	_, err = LoadProfile(fs, "/missing.yaml")
	require.Error(t, err)
}

func TestClosedEmulator(t *testing.T) {
	t.Parallel()
	e := New(DefaultProfile())
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrClosed)
	_, err = e.Write([]byte("M105\n"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestServe(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, DefaultProfile()) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Write([]byte("M115\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(got.String(), "FIRMWARE_NAME") || !strings.Contains(got.String(), "ok") {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}
	assert.True(t, strings.HasPrefix(got.String(), "start\n"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
