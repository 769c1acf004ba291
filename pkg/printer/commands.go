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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidAxis     = errors.New("invalid axis")
	ErrInvalidExtruder = errors.New("invalid extruder")
	ErrInvalidRatio    = errors.New("ratio must be positive")
)

// Axis is a set of axes to home.
type Axis uint8

const (
	AxisX Axis = 1 << iota
	AxisY
	AxisZ
	AxisAll = AxisX | AxisY | AxisZ
)

// ParseAxes reads a string such as "xy". An empty string is every axis.
func ParseAxes(s string) (Axis, error) {
	if s == "" {
		return AxisAll, nil
	}
	var a Axis
	for _, r := range strings.ToUpper(s) {
		switch r {
		case 'X':
			a |= AxisX
		case 'Y':
			a |= AxisY
		case 'Z':
			a |= AxisZ
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, r)
		}
	}
	return a, nil
}

// MoveTarget is a move request. Nil axes are left out of the command; a
// zero FeedRate uses the firmware's current one.
type MoveTarget struct {
	X        *float64
	Y        *float64
	Z        *float64
	E        *float64
	FeedRate float64
}

func (t MoveTarget) line() string {
	var sb strings.Builder
	sb.WriteString("G1")
	for _, w := range []struct {
		v      *float64
		letter byte
	}{{t.X, 'X'}, {t.Y, 'Y'}, {t.Z, 'Z'}, {t.E, 'E'}} {
		if w.v == nil {
			continue
		}
		prec := 3
		if w.letter == 'E' {
			prec = 5
		}
		sb.WriteByte(' ')
		sb.WriteByte(w.letter)
		sb.WriteString(gcode.FormatNumber(*w.v, prec))
	}
	if t.FeedRate > 0 {
		sb.WriteString(" F")
		sb.WriteString(gcode.FormatNumber(t.FeedRate, 1))
	}
	return sb.String()
}

// queueLocked adds lines for the write loop, which must be running.
func (c *Connection) queueLocked(forceTop bool, lines ...string) error {
	if !c.state.IsConnected() {
		return ErrNotConnected
	}
	if forceTop {
		// keep the given order when jumping the queue
		for i := len(lines) - 1; i >= 0; i-- {
			c.chain.Queued.Add(lines[i], true)
		}
	} else {
		for _, l := range lines {
			c.chain.Queued.Add(l, false)
		}
	}
	c.wakeWriter()
	return nil
}

// QueueLine sends raw G-code. line may hold several commands separated by
// newlines. forceTop puts them ahead of everything already queued.
func (c *Connection) QueueLine(line string, forceTop bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueLocked(forceTop, line)
}

func (c *Connection) HomeAxis(axes Axis) error {
	line := "G28"
	if axes&AxisAll != AxisAll {
		for _, a := range []struct {
			axis Axis
			word string
		}{{AxisX, " X"}, {AxisY, " Y"}, {AxisZ, " Z"}} {
			if axes&a.axis != 0 {
				line += a.word
			}
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueLocked(false, line)
}

func (c *Connection) MoveAbsolute(t MoveTarget) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueLocked(false, "G90", t.line())
}

func (c *Connection) MoveRelative(t MoveTarget) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueLocked(false, "G91", t.line(), "G90")
}

// SetTargetHotend sets an extruder temperature without waiting for it. The
// cached target changes at once.
func (c *Connection) SetTargetHotend(extruder int, celsius float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if extruder < 0 || extruder >= c.settings.ExtruderCount {
		return fmt.Errorf("%w: %d", ErrInvalidExtruder, extruder)
	}
	err := c.queueLocked(false, "M104 T"+strconv.Itoa(extruder)+" S"+gcode.FormatNumber(celsius, 1))
	if err == nil {
		c.rt.hotendTarget[extruder] = celsius
	}
	return err
}

func (c *Connection) SetTargetBed(celsius float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.queueLocked(false, "M140 S"+gcode.FormatNumber(celsius, 1))
	if err == nil {
		c.rt.bedTarget = celsius
	}
	return err
}

// ReadPosition asks for an M114 report. Writing pauses until it arrives.
func (c *Connection) ReadPosition() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueLocked(false, "M114")
}

func (c *Connection) ReleaseMotors() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueLocked(false, "M84")
}

// RebootBoard pulses the reset lines. The firmware's start message then
// resets line numbering; it is reset locally as well in case the message is
// lost.
func (c *Connection) RebootBoard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsConnected() || c.transport == nil {
		return ErrNotConnected
	}
	if err := c.transport.ResetBoard(); err != nil {
		return fmt.Errorf("failed to reset board: %w", err)
	}
	log.Info().Msg("printer board reset")
	c.resetProtocolLocked()
	c.lastRead, c.lastOK = c.clock.Now(), c.clock.Now()
	return nil
}

// Babystep nudges Z by dz on the following moves and returns the total
// offset.
func (c *Connection) Babystep(dz float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsConnected() {
		return 0, ErrNotConnected
	}
	c.chain.BabySteps.AddZ(dz)
	z := c.chain.BabySteps.Offset().Z
	c.settings.BabyStepZOffset = z
	return z, nil
}

// SetRatios changes the feed rate and extrusion multipliers of the running
// chain. Nil leaves a ratio unchanged.
func (c *Connection) SetRatios(feedRate, extrusion *float64) error {
	if feedRate != nil && *feedRate <= 0 || extrusion != nil && *extrusion <= 0 {
		return ErrInvalidRatio
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if feedRate != nil {
		c.settings.FeedRateRatio = *feedRate
		c.chain.FeedRateMultiplier.SetRatio(*feedRate)
	}
	if extrusion != nil {
		c.settings.ExtrusionRatio = *extrusion
		c.chain.ExtrusionMultiplier.SetRatio(*extrusion)
	}
	return nil
}

// Job returns a copy of the current or last job, nil if there is none.
func (c *Connection) Job() *PrintJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return nil
	}
	j := *c.job
	return &j
}

// PrintElapsed is how long the current print has been running.
func (c *Connection) PrintElapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.PrintIsActive() {
		return 0
	}
	return c.clock.Since(c.printStarted)
}

func (c *Connection) MalformedReplies() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rt.malformed
}

func (c *Connection) Status() models.StatusResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(max(1, c.settings.ExtruderCount), config.MaxExtruders)
	hotends := make([]models.HeaterResponse, count)
	for i := range hotends {
		hotends[i] = models.HeaterResponse{Actual: c.rt.hotendActual[i], Target: c.rt.hotendTarget[i]}
	}

	s := models.StatusResponse{
		Position:         positionResponse(c.rt.lastReported),
		Destination:      positionResponse(c.rt.destination),
		Firmware:         firmwareResponse(c.rt.firmware),
		State:            c.state.String(),
		Detail:           c.detail.String(),
		LastError:        c.lastError,
		Hotends:          hotends,
		Bed:              models.HeaterResponse{Actual: c.rt.bedActual, Target: c.rt.bedTarget},
		ActiveExtruder:   c.rt.activeExtruder,
		Layer:            c.chain.Pause.Layer(),
		FanSpeed:         c.rt.fanSpeed,
		FeedRateRatio:    c.chain.FeedRateMultiplier.Ratio(),
		ExtrusionRatio:   c.chain.ExtrusionMultiplier.Ratio(),
		BabyStepZ:        c.chain.BabySteps.Offset().Z,
		MalformedReplies: c.rt.malformed,
		LinesSent:        c.linesSent,
		Connected:        c.state.IsConnected(),
		Printing:         c.state.Printing(),
	}
	if c.job != nil {
		j := JobResponse(c.job)
		s.Job = &j
		s.PercentComplete = c.job.PercentComplete
	}
	if c.state.PrintIsActive() {
		s.PercentComplete = c.printPercentLocked()
	}
	return s
}
