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
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/testing/emulator"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPort    = "/dev/ttyUSB0"
	waitFor     = 5 * time.Second
	pollEvery   = 5 * time.Millisecond
	notifyQueue = 8192
)

type memoryJobs struct {
	saved    map[string]PrintJob
	progress []float64
	mu       sync.Mutex
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{saved: make(map[string]PrintJob)}
}

func (m *memoryJobs) Save(_ context.Context, job *PrintJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[job.ID] = *job
	return nil
}

func (m *memoryJobs) UpdateProgress(_ context.Context, id string, percent float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.saved[id]
	if ok && percent > j.PercentComplete {
		j.PercentComplete = percent
		m.saved[id] = j
	}
	m.progress = append(m.progress, percent)
	return nil
}

func (m *memoryJobs) get(id string) (PrintJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.saved[id]
	return j, ok
}

type rig struct {
	conn  *Connection
	emu   *emulator.Emulator
	clock *clockwork.FakeClock
	fs    afero.Fs
	jobs  *memoryJobs
	ns    chan models.Notification
}

func testSettings() config.Printer {
	s := config.DefaultPrinter
	s.Port = testPort
	s.BedMax = []float64{200, 200, 180}
	s.BedMin = []float64{0, 0, 0}
	return s
}

// newRig builds a connection wired to a fresh emulator. The clock only moves
// when the test advances it.
func newRig(t *testing.T, settings config.Printer, profile emulator.Profile) *rig {
	t.Helper()
	r := &rig{
		emu:   emulator.New(profile),
		clock: clockwork.NewFakeClock(),
		fs:    afero.NewMemMapFs(),
		jobs:  newMemoryJobs(),
		ns:    make(chan models.Notification, notifyQueue),
	}
	require.NoError(t, afero.WriteFile(r.fs, testPort, nil, 0o600))

	conn, err := NewConnection(Options{
		Transports: func(context.Context, *config.Printer) (Transport, error) {
			return r.emu, nil
		},
		Fs:            r.fs,
		Clock:         r.clock,
		Jobs:          r.jobs,
		Notifications: r.ns,
		Settings:      settings,
	})
	require.NoError(t, err)
	r.conn = conn
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return r
}

func (r *rig) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, r.conn.Connect())
	r.waitState(t, Connected)
	// the connect G-code is the last thing queued on connect
	require.Eventually(t, func() bool {
		return r.emu.CountCommand("M115") == 1
	}, waitFor, pollEvery)
}

func (r *rig) waitState(t *testing.T, want CommunicationState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.conn.State() == want
	}, waitFor, pollEvery, "state never became %s, is %s", want, r.conn.State())
}

// advanceUntil steps the clock until cond holds.
func (r *rig) advanceUntil(t *testing.T, step time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		r.clock.Advance(step)
		return false
	}, waitFor, 20*time.Millisecond)
}

func (r *rig) writeFile(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := "/prints/" + name
	require.NoError(t, afero.WriteFile(r.fs, path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

// drainMethods empties the notification channel and returns the methods
// seen.
func (r *rig) drainMethods() []string {
	var out []string
	for {
		select {
		case n := <-r.ns:
			out = append(out, n.Method)
		default:
			return out
		}
	}
}

func receivedWithNumber(e *emulator.Emulator, n int) int {
	prefix := "N" + strconv.Itoa(n) + " "
	count := 0
	for _, l := range e.Received() {
		if strings.HasPrefix(l, prefix) {
			count++
		}
	}
	return count
}

func assertCommandsInOrder(t *testing.T, got []string, want ...string) {
	t.Helper()
	i := 0
	for _, c := range got {
		if i < len(want) && c == want[i] {
			i++
		}
	}
	assert.Equal(t, len(want), i, "commands %q do not contain %q in order", got, want)
}
