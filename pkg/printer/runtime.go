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
	"math"

	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/printlink/printlink-core/pkg/printer/streams"
	"github.com/rs/zerolog/log"
)

// Firmware is what the firmware reported about itself in reply to M115.
type Firmware struct {
	Name         string
	Version      string
	MachineType  string
	Type         FirmwareType
	ExtruderSlot int
}

// runtimeState is the printer data learned from replies and from commands
// written. It is reset on every connect and disconnect.
type runtimeState struct {
	hotendActual [config.MaxExtruders]float64
	hotendTarget [config.MaxExtruders]float64
	firmware     Firmware
	// lastReported is the position from the last M114 reply.
	lastReported gcode.Move
	// destination is where the written moves take the head.
	destination    gcode.Move
	homing         gcode.Move
	bedActual      float64
	bedTarget      float64
	fanSpeed       float64
	activeExtruder int
	malformed      int
	relative       bool
	relativeE      bool
}

func (r *runtimeState) reset() {
	*r = runtimeState{
		lastReported: gcode.Nowhere,
		destination:  gcode.Nowhere,
		homing:       gcode.Nowhere,
	}
}

func validExtruder(i int) bool {
	return i >= 0 && i < config.MaxExtruders
}

func (r *runtimeState) ActualHotendTemperature(i int) float64 {
	if !validExtruder(i) {
		return 0
	}
	return r.hotendActual[i]
}

func (r *runtimeState) TargetHotendTemperature(i int) float64 {
	if !validExtruder(i) {
		return 0
	}
	return r.hotendTarget[i]
}

func (r *runtimeState) ActualBedTemperature() float64 { return r.bedActual }
func (r *runtimeState) TargetBedTemperature() float64 { return r.bedTarget }

func vec3(v []float64) gcode.Vec3 {
	if len(v) != 3 {
		return gcode.Vec3{}
	}
	return gcode.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// streamSettingsLocked converts the printer settings into the snapshot a
// new chain is built from.
func (c *Connection) streamSettingsLocked(recovery *streams.RecoverySettings) streams.Settings {
	s := &c.settings
	offsets := make([]gcode.Vec3, 0, len(s.ToolOffsets))
	for _, o := range s.ToolOffsets {
		offsets = append(offsets, vec3(o))
	}
	bedMax := vec3(s.BedMax)
	if len(s.BedMax) != 3 {
		bedMax = gcode.Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	}
	return streams.Settings{
		WriteRewrite:          c.writeRewrite,
		PauseGCode:            s.PauseGCode,
		ResumeGCode:           s.ResumeGCode,
		BeforeToolchangeGCode: s.BeforeToolchangeGCode,
		AfterToolchangeGCode:  s.AfterToolchangeGCode,
		ToolOffsets:           offsets,
		ToolSpeedRatios:       s.ToolSpeedRatios,
		PauseLayers:           s.PauseLayers,
		BedMin:                vec3(s.BedMin),
		BedMax:                bedMax,
		BabyStepOffset:        gcode.Vec3{Z: s.BabyStepZOffset},
		ExtruderCount:         s.ExtruderCount,
		FeedRateRatio:         s.FeedRateRatio,
		ExtrusionRatio:        s.ExtrusionRatio,
		MaxSegmentLength:      s.MaxSegmentLength,
		TemperatureInterval:   s.TemperaturePollInterval(),
		SplitLongMoves:        s.SplitLongMoves,
		SoftwareEndstops:      s.SoftwareEndstops,
		Recovery:              recovery,
	}
}

func (c *Connection) levelerLocked() streams.Leveler {
	if c.leveler != nil {
		return c.leveler
	}
	if c.plane != nil {
		return c.plane
	}
	return nil
}

// replaceChainLocked disposes of the current chain and builds a new one on
// source. With carryQueue set, commands still queued on the old chain move
// to the new one.
func (c *Connection) replaceChainLocked(
	source streams.Source,
	recovery *streams.RecoverySettings,
	carryQueue bool,
) {
	var queued []string
	if c.chain != nil {
		if carryQueue {
			queued = c.chain.Queued.Pending()
		}
		if err := c.chain.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing print source")
		}
	}
	c.chain = streams.NewChain(source, streams.Options{
		Printer:          &c.rt,
		Clock:            c.clock,
		Leveler:          c.levelerLocked(),
		OnPauseRequested: c.pauseRequestedLocked,
		Queued:           queued,
		Settings:         c.streamSettingsLocked(recovery),
	})
	if !c.rt.lastReported.IsNowhere() {
		c.chain.SetPrinterPosition(c.rt.lastReported)
	}
}
