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
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Profile describes the firmware being emulated.
type Profile struct {
	// Replies maps a command such as "M503" to extra lines sent before its ok.
	Replies      map[string]string `yaml:"replies,omitempty"`
	SdFiles      map[string]int    `yaml:"sd_files,omitempty"`
	Name         string            `yaml:"name"`
	FirmwareName string            `yaml:"firmware_name"`
	MachineType  string            `yaml:"machine_type"`
	StartMessage string            `yaml:"start_message"`
	Extruders    int               `yaml:"extruders"`
	// SdStep is how many bytes an SD print advances per M27.
	SdStep int `yaml:"sd_step"`
	// BootDelayLines ignores this many lines after open, like a board
	// that resets when the port opens.
	BootDelayLines int `yaml:"boot_delay_lines"`
	// Repetier makes resend requests acknowledge themselves.
	Repetier bool `yaml:"repetier"`
}

func DefaultProfile() Profile {
	return Profile{
		Name:         "marlin",
		FirmwareName: "Marlin 2.1.2 (Printlink Emulator)",
		MachineType:  "Printlink Emulator",
		StartMessage: "start",
		Extruders:    1,
		SdStep:       250,
		SdFiles:      map[string]int{"cube.gco": 1000},
	}
}

// ReadProfile parses a YAML profile. Missing fields keep their defaults.
func ReadProfile(r io.Reader) (Profile, error) {
	p := DefaultProfile()
	if err := yaml.NewDecoder(r).Decode(&p); err != nil && err != io.EOF {
		return Profile{}, fmt.Errorf("failed to decode emulator profile: %w", err)
	}
	if p.Extruders < 1 {
		p.Extruders = 1
	}
	if p.SdStep < 1 {
		p.SdStep = 1
	}
	return p, nil
}

func LoadProfile(fs afero.Fs, path string) (Profile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to open emulator profile: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadProfile(f)
}
