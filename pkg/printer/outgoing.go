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
	"strings"

	"github.com/printlink/printlink-core/pkg/gcode"
)

// observeSentLocked updates the runtime state from a line about to be
// written. Targets, destination, fan and tool follow what was commanded
// rather than waiting for the firmware to report them.
func (c *Connection) observeSentLocked(line string) {
	cmd := gcode.Command(line)
	switch cmd {
	case "M104", "M109":
		idx := c.rt.activeExtruder
		if t, ok := gcode.Parameter(line, 'T'); ok {
			idx = int(t)
		}
		s, ok := gcode.Parameter(line, 'S')
		if !ok {
			s, ok = gcode.Parameter(line, 'R')
		}
		if ok && validExtruder(idx) {
			c.rt.hotendTarget[idx] = s
		}
	case "M140", "M190":
		s, ok := gcode.Parameter(line, 'S')
		if !ok {
			s, ok = gcode.Parameter(line, 'R')
		}
		if ok {
			c.rt.bedTarget = s
		}
	case "G28":
		c.homingRequested = true
		c.chain.Queued.Add("M114", true)
	case "M114":
		c.waitingForPosition = true
		c.positionWaitStarted = c.clock.Now()
	case "M105":
		c.chain.RequestTemperatures.Requested()
	case "G92":
		c.rt.destination = setPosition(line, c.rt.destination)
	case "G0", "G1":
		c.rt.destination = c.nextDestination(line)
	case "M106":
		speed := 255.0
		if s, ok := gcode.Parameter(line, 'S'); ok {
			speed = s
		}
		c.rt.fanSpeed = speed
	case "M107":
		c.rt.fanSpeed = 0
	case "G90":
		c.rt.relative = false
	case "G91":
		c.rt.relative = true
	case "M82":
		c.rt.relativeE = false
	case "M83":
		c.rt.relativeE = true
	default:
		if t, ok := gcode.ToolIndex(line); ok && validExtruder(t) {
			c.rt.activeExtruder = t
		}
	}
}

func (c *Connection) nextDestination(line string) gcode.Move {
	prev := c.rt.destination
	if !c.rt.relative && !c.rt.relativeE {
		return gcode.ParseMove(line, prev)
	}
	next := gcode.ParseMove(line, prev)
	if c.rt.relative {
		delta := gcode.ParseMove(line, gcode.Move{})
		next.Position = prev.Position.Add(delta.Position)
	}
	if c.rt.relativeE || c.rt.relative {
		if e, ok := gcode.Parameter(line, 'E'); ok {
			next.Extrusion = prev.Extrusion + e
		}
	}
	return next
}

// setPosition applies G92; a bare G92 zeroes every axis.
func setPosition(line string, prev gcode.Move) gcode.Move {
	code := strings.TrimSpace(strings.TrimPrefix(gcode.StripComment(line), "G92"))
	if code == "" {
		prev.Position = gcode.Vec3{}
		prev.Extrusion = 0
		return prev
	}
	feed := prev.FeedRate
	next := gcode.ParseMove(line, prev)
	next.FeedRate = feed
	return next
}
