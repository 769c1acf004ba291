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
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceReadsLinesAndProgress(t *testing.T) {
	t.Parallel()

	text := "G28\n  G1 X1 ; move \r\nM105"
	src := NewSource(strings.NewReader(text), int64(len(text)))

	assert.InDelta(t, 0.0, src.PercentComplete(), 1e-9)

	line, ok := src.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "G28", line)
	assert.Greater(t, src.PercentComplete(), 0.0)

	line, ok = src.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "G1 X1 ; move", line)

	// last line without a trailing newline
	line, ok = src.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "M105", line)
	assert.InDelta(t, 100.0, src.PercentComplete(), 1e-9)

	_, ok = src.ReadLine()
	assert.False(t, ok)
	require.NoError(t, src.Close())
}

func TestOpenFileSource(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/jobs/cube.gcode", []byte("G28\nG1 X1\n"), 0o644))

	src, err := OpenFileSource(fs, "/jobs/cube.gcode")
	require.NoError(t, err)
	assert.Equal(t, []string{"G28", "G1 X1"}, drain(t, src))
	require.NoError(t, src.Close())

	_, err = OpenFileSource(fs, "/jobs/missing.gcode")
	require.Error(t, err)

	require.NoError(t, fs.MkdirAll("/jobs/dir", 0o755))
	_, err = OpenFileSource(fs, "/jobs/dir")
	require.Error(t, err)
}

func TestNotPrintingNeverEnds(t *testing.T) {
	t.Parallel()

	var src NotPrinting
	for range 5 {
		line, ok := src.ReadLine()
		assert.True(t, ok)
		assert.Empty(t, line)
	}
	assert.Zero(t, src.PercentComplete())
}

func TestProgressStreamCancelAndLayers(t *testing.T) {
	t.Parallel()

	p := NewProgressStream(sourceOf(";LAYER:0", "G1 X1", ";LAYER:1", "G1 X2"))
	assert.Equal(t, []string{";LAYER:0", "G1 X1", ";LAYER:1"}, take(t, p, 3))
	assert.Equal(t, 2, p.Layer())

	p.Cancel()
	assert.True(t, p.Canceled())
	_, ok := p.ReadLine()
	assert.False(t, ok)
}

func TestQueuedStream(t *testing.T) {
	t.Parallel()

	q := NewQueuedStream(sourceOf("G1 X1"))
	q.Add("M105", false)
	q.Add("M114\n\n G28 ", false)
	q.Add("M112", true)

	assert.Equal(t, 4, q.Count())
	assert.Equal(t, []string{"M112", "M105", "M114", "G28"}, q.Pending())
	assert.Equal(t, []string{"M112", "M105", "M114", "G28", "G1 X1"}, drain(t, q))

	q.Add("M105", false)
	q.Clear()
	assert.Zero(t, q.Count())
}
