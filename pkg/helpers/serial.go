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
	"runtime"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// SerialPort describes a port a printer could be attached to.
type SerialPort struct {
	Name         string
	VID          string
	PID          string
	SerialNumber string
	Product      string
	IsUSB        bool
}

type serialDevice struct {
	Vid string
	Pid string
}

// USB serial devices that are never printers.
var ignoreDevices = []serialDevice{
	// Sinden Lightgun
	{Vid: "16c0", Pid: "0f38"},
	{Vid: "16c0", Pid: "0f39"},
	{Vid: "16d0", Pid: "0f38"},
	{Vid: "16d0", Pid: "0f39"},
	// Raspberry Pi Debug Probe
	{Vid: "2e8a", Pid: "000c"},
}

var listPorts = enumerator.GetDetailedPortsList

func printerCandidate(goos string, p *enumerator.PortDetails) bool {
	if p.IsUSB && slices.Contains(ignoreDevices, serialDevice{
		Vid: strings.ToLower(p.VID),
		Pid: strings.ToLower(p.PID),
	}) {
		return false
	}
	switch goos {
	case "linux":
		for _, prefix := range []string{"/dev/ttyUSB", "/dev/ttyACM", "/dev/ttyAMA", "/dev/serial/"} {
			if strings.HasPrefix(p.Name, prefix) {
				return true
			}
		}
		return false
	case "darwin":
		return strings.HasPrefix(p.Name, "/dev/tty.usb") || strings.HasPrefix(p.Name, "/dev/cu.usb")
	case "windows":
		return strings.HasPrefix(p.Name, "COM")
	default:
		return p.IsUSB
	}
}

// ListSerialPorts returns the serial ports a printer may be attached to.
func ListSerialPorts() ([]SerialPort, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	list := make([]SerialPort, 0, len(ports))
	for _, p := range ports {
		if !printerCandidate(runtime.GOOS, p) {
			log.Debug().Str("port", p.Name).Msg("skipping serial port")
			continue
		}
		list = append(list, SerialPort{
			Name:         p.Name,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
			IsUSB:        p.IsUSB,
		})
	}
	return list, nil
}
