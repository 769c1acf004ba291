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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FSHelper sets up G-code files and device nodes on an afero filesystem.
type FSHelper struct {
	Fs afero.Fs
}

func NewMemoryFS() *FSHelper {
	return &FSHelper{Fs: afero.NewMemMapFs()}
}

// WriteGCode writes lines as a G-code file and returns its path.
func (h *FSHelper) WriteGCode(path string, lines ...string) (string, error) {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory for gcode file: %w", err)
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := afero.WriteFile(h.Fs, path, []byte(data), 0o600); err != nil {
		return "", fmt.Errorf("failed to write gcode file: %w", err)
	}
	return path, nil
}

// CreateDevice makes path exist so port availability checks pass.
func (h *FSHelper) CreateDevice(path string) error {
	if err := h.Fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create device directory: %w", err)
	}
	if err := afero.WriteFile(h.Fs, path, nil, 0o600); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}
