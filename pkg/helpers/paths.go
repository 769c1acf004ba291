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
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/printlink/printlink-core/pkg/config"
)

var (
	userDirCache       string
	userDirCacheExists bool
	userDirOnce        sync.Once
)

func ExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}

// HasUserDir reports a "user" directory next to the binary. When present it
// replaces the XDG directories, for portable installs on a printer host.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exe := os.Getenv(config.AppEnv)
		if exe == "" {
			var err error
			exe, err = os.Executable()
			if err != nil {
				return
			}
		}

		userDir := filepath.Join(filepath.Dir(exe), config.UserDir)
		info, err := os.Stat(userDir)
		if err != nil || !info.IsDir() {
			return
		}
		abs, err := filepath.Abs(userDir)
		if err != nil {
			return
		}
		userDirCache = abs
		userDirCacheExists = true
	})
	return userDirCache, userDirCacheExists
}

func ConfigDir() string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

func DataDir() string {
	if v, ok := HasUserDir(); ok {
		return v
	}
	return filepath.Join(xdg.DataHome, config.AppName)
}

func LogDir() string {
	return filepath.Join(DataDir(), config.LogsDir)
}

// TempDir holds the pid file and is cleared on reboot.
func TempDir() string {
	if v, ok := HasUserDir(); ok {
		return filepath.Join(v, "tmp")
	}
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, config.AppName)
	}
	return filepath.Join(os.TempDir(), config.AppName)
}
