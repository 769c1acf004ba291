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

package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// MaxExtruders bounds extruder_count and the per-extruder temperature slots.
const MaxExtruders = 8

type Leveling struct {
	Points  [][]float64 `toml:"points,omitempty,multiline"`
	Enabled bool        `toml:"enabled"`
}

// Printer is the connection and streaming configuration read by the printer
// core. The core only ever sees a copy taken with Instance.Printer.
type Printer struct {
	Port                  string      `toml:"port"`
	Address               string      `toml:"address,omitempty"`
	ConnectGCode          string      `toml:"connect_gcode,multiline"`
	CancelGCode           string      `toml:"cancel_gcode,multiline"`
	PauseGCode            string      `toml:"pause_gcode,multiline"`
	ResumeGCode           string      `toml:"resume_gcode,multiline"`
	BeforeToolchangeGCode string      `toml:"before_toolchange_gcode,omitempty,multiline"`
	AfterToolchangeGCode  string      `toml:"after_toolchange_gcode,omitempty,multiline"`
	ReadRegex             string      `toml:"read_regex,omitempty,multiline"`
	WriteRegex            string      `toml:"write_regex,omitempty,multiline"`
	PauseLayers           []int       `toml:"pause_layers,omitempty"`
	ToolOffsets           [][]float64 `toml:"tool_offsets,omitempty"`
	ToolSpeedRatios       []float64   `toml:"tool_speed_ratios,omitempty"`
	BedMin                []float64   `toml:"bed_min,omitempty"`
	BedMax                []float64   `toml:"bed_max,omitempty"`
	Leveling              Leveling    `toml:"leveling"`

	BaudRate                      int `toml:"baud_rate"`
	ExtruderCount                 int `toml:"extruder_count"`
	MaxAckTimeoutResends          int `toml:"max_ack_timeout_resends"`
	ConnectTimeoutSeconds         int `toml:"connect_timeout_seconds"`
	HeatHoldSeconds               int `toml:"heat_hold_seconds"`
	HeatHoldPrintThresholdSeconds int `toml:"heat_hold_print_threshold_seconds"`

	FeedRateRatio          float64 `toml:"feedrate_ratio"`
	ExtrusionRatio         float64 `toml:"extrusion_ratio"`
	BabyStepZOffset        float64 `toml:"baby_step_z_offset"`
	MaxSegmentLength       float64 `toml:"max_segment_length"`
	TemperaturePollSeconds float64 `toml:"temperature_poll_seconds"`
	RecoveryRaiseZ         float64 `toml:"recovery_raise_z"`
	RecoveryPrimeLength    float64 `toml:"recovery_prime_length"`
	RecoveryFeedRateRatio  float64 `toml:"recovery_feedrate_ratio"`

	Network          bool `toml:"network"`
	Checksums        bool `toml:"checksums"`
	SplitLongMoves   bool `toml:"split_long_moves"`
	SoftwareEndstops bool `toml:"software_endstops"`
	ZHomesToMax      bool `toml:"z_homes_to_max"`
	RecoveryEnabled  bool `toml:"recovery_enabled"`
}

var DefaultPrinter = Printer{
	BaudRate:                      250000,
	Checksums:                     true,
	ExtruderCount:                 1,
	ConnectGCode:                  "M115",
	CancelGCode:                   "G91\nG1 Z5 F600\nG90",
	PauseGCode:                    "G91\nG1 Z5 F600\nG90",
	FeedRateRatio:                 1,
	ExtrusionRatio:                1,
	MaxSegmentLength:              5,
	TemperaturePollSeconds:        1,
	ConnectTimeoutSeconds:         10,
	HeatHoldSeconds:               300,
	HeatHoldPrintThresholdSeconds: 600,
	RecoveryRaiseZ:                5,
	RecoveryPrimeLength:           3,
	RecoveryFeedRateRatio:         0.5,
	BedMax:                        []float64{200, 200, 180},
	BedMin:                        []float64{0, 0, 0},
}

func cloneMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = slices.Clone(row)
	}
	return out
}

func (p Printer) clone() Printer {
	p.PauseLayers = slices.Clone(p.PauseLayers)
	p.ToolOffsets = cloneMatrix(p.ToolOffsets)
	p.ToolSpeedRatios = slices.Clone(p.ToolSpeedRatios)
	p.BedMin = slices.Clone(p.BedMin)
	p.BedMax = slices.Clone(p.BedMax)
	p.Leveling.Points = cloneMatrix(p.Leveling.Points)
	return p
}

func (p *Printer) validate() error {
	if p.ExtruderCount < 1 || p.ExtruderCount > MaxExtruders {
		return fmt.Errorf("extruder_count must be between 1 and %d, got %d", MaxExtruders, p.ExtruderCount)
	}
	if p.BaudRate <= 0 && !p.Network {
		return fmt.Errorf("baud_rate must be positive, got %d", p.BaudRate)
	}
	if p.MaxAckTimeoutResends < 0 {
		return errors.New("max_ack_timeout_resends must not be negative")
	}
	for i, off := range p.ToolOffsets {
		if len(off) != 3 {
			return fmt.Errorf("tool_offsets[%d] must have 3 values", i)
		}
	}
	for _, v := range [][]float64{p.BedMin, p.BedMax} {
		if v != nil && len(v) != 3 {
			return errors.New("bed_min and bed_max must have 3 values")
		}
	}
	if p.Leveling.Enabled {
		if len(p.Leveling.Points) != 3 {
			return errors.New("leveling needs exactly 3 probe points")
		}
		for i, pt := range p.Leveling.Points {
			if len(pt) != 3 {
				return fmt.Errorf("leveling.points[%d] must have 3 values", i)
			}
		}
	}
	return nil
}

// HeatHold is how long heaters stay on after a short print finishes.
func (p Printer) HeatHold() time.Duration { //nolint:gocritic // callable on returned snapshots
	return time.Duration(p.HeatHoldSeconds) * time.Second
}

func (p Printer) HeatHoldPrintThreshold() time.Duration { //nolint:gocritic // callable on returned snapshots
	return time.Duration(p.HeatHoldPrintThresholdSeconds) * time.Second
}

func (p Printer) ConnectTimeout() time.Duration { //nolint:gocritic // callable on returned snapshots
	return time.Duration(p.ConnectTimeoutSeconds) * time.Second
}

func (p Printer) TemperaturePollInterval() time.Duration { //nolint:gocritic // callable on returned snapshots
	return time.Duration(p.TemperaturePollSeconds * float64(time.Second))
}

// Printer returns a copy of the printer section safe to hold across reloads.
func (c *Instance) Printer() Printer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Printer.clone()
}

//nolint:gocritic // config struct copied for immutability
func (c *Instance) SetPrinter(p Printer) error {
	p = p.clone()
	if err := p.validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Printer = p
	return nil
}

func (c *Instance) SetPrinterPort(port string, baudRate int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Printer.Port = port
	if baudRate > 0 {
		c.vals.Printer.BaudRate = baudRate
	}
}

func (c *Instance) SetBabyStepZOffset(offset float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Printer.BabyStepZOffset = offset
}
