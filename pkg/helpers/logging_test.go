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

package helpers

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/printlink/printlink-core/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:paralleltest // replaces the global logger
func TestInitLogging(t *testing.T) {
	prev, prevWriter := log.Logger, logWriter
	t.Cleanup(func() {
		log.Logger = prev
		logWriter = prevWriter
	})

	dir := filepath.Join(t.TempDir(), "logs")
	var extra bytes.Buffer
	require.NoError(t, InitLogging(dir, []io.Writer{&extra}))

	log.Info().Str("port", "/dev/ttyUSB0").Msg("connected")

	assert.Contains(t, extra.String(), `"port":"/dev/ttyUSB0"`)
	data, err := os.ReadFile(filepath.Join(dir, config.LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "connected")

	_, err = LogWriter().Write([]byte("raw\n"))
	require.NoError(t, err)
	assert.Contains(t, extra.String(), "raw")
}
