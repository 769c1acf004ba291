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
	"context"
	"time"

	"github.com/printlink/printlink-core/pkg/api/notifications"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/printlink/printlink-core/pkg/printer/streams"
	"github.com/rs/zerolog/log"
)

const (
	writePollInterval = 5 * time.Millisecond
	// positionWaitLimit force-clears an M114 that never got its reply.
	positionWaitLimit = 60 * time.Second
	// silenceLimit and ackSilenceLimit together detect a printer that went
	// quiet: nothing heard for silenceLimit and no ok for ackSilenceLimit.
	silenceLimit    = 10 * time.Second
	ackSilenceLimit = 30 * time.Second

	moveAckWait    = 2 * time.Second
	heatAckWait    = 60 * time.Second
	homingAckWait  = 30 * time.Second
	defaultAckWait = 10 * time.Second
)

// expectedAckWait is how long the firmware may take to acknowledge line.
// Every timeout resend of the same incident stretches the wait.
func expectedAckWait(line string, timeoutResends int) time.Duration {
	mult := time.Duration(1 + timeoutResends)
	switch {
	case gcode.LineIsMovement(line):
		return moveAckWait * mult
	case gcode.IsHeatAndWait(line):
		return heatAckWait
	case gcode.IsHoming(line):
		return homingAckWait
	default:
		return defaultAckWait * mult
	}
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func (c *Connection) readLoop(ctx context.Context, gen uint64, t Transport) {
	defer c.loops.Done()
	buf := make([]byte, 1024)
	for ctx.Err() == nil {
		n, err := t.Read(buf)
		if err != nil {
			c.mu.Lock()
			if gen == c.generation {
				c.connectionLostLocked(newConnectError(IOException, "failed to read from printer", err))
			}
			c.mu.Unlock()
			return
		}
		if n == 0 {
			continue
		}
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.feedLocked(buf[:n])
		c.mu.Unlock()
		c.wakeWriter()
	}
}

func (c *Connection) writeLoop(ctx context.Context, gen uint64) {
	defer c.loops.Done()
	ticker := time.NewTicker(writePollInterval)
	defer ticker.Stop()
	for {
		for {
			progressed, alive := c.writeStep(gen)
			if !alive {
				return
			}
			if !progressed || ctx.Err() != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		case <-ticker.C:
		}
	}
}

// writeStep does at most one transmission. progressed reports whether
// anything happened that may let the next step proceed at once; alive is
// false once the loop belongs to an old connection.
func (c *Connection) writeStep(gen uint64) (progressed, alive bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.transport == nil {
		return false, false
	}
	now := c.clock.Now()

	if c.waitingForPosition {
		if now.Sub(c.positionWaitStarted) < positionWaitLimit {
			return false, true
		}
		log.Warn().Msg("no position reply, continuing")
		c.waitingForPosition = false
	}

	if c.waitingForOK {
		if !c.ackTimedOutLocked(now) {
			return false, true
		}
		return c.ackTimeoutLocked(), gen == c.generation
	}

	if c.needsReset {
		c.needsReset = false
		return c.transmitLocked(transmission{text: "M110 N0", plain: "M110 N0"}), gen == c.generation
	}

	if c.sendIndex <= c.ring.Head() {
		e, ok := c.ring.Get(c.sendIndex)
		if !ok {
			log.Error().Int("line", c.sendIndex).Msg("line left the resend buffer, resetting")
			c.resetProtocolLocked()
			return true, true
		}
		idx := c.sendIndex
		c.sendIndex++
		log.Debug().Int("line", idx).Msg("resending")
		return c.transmitLocked(transmission{text: e.text, plain: e.plain, index: idx}), gen == c.generation
	}

	line, ok := c.chain.ReadLine()
	switch {
	case !ok:
		c.streamEndedLocked()
		return true, gen == c.generation
	case line == "":
		return false, true
	case line == streams.PauseMarker:
		c.chain.Pause.Reached()
		if c.state == Printing && c.chain.Pause.Paused() {
			c.setStateLocked(Paused)
		}
		return true, true
	}
	return c.sendLineLocked(line), gen == c.generation
}

func (c *Connection) ackTimedOutLocked(now time.Time) bool {
	if now.Sub(c.lastWrite) >= expectedAckWait(c.lastTransmitted.plain, c.timeoutResends) {
		return true
	}
	heard := latest(c.lastRead, c.lastWrite)
	acked := latest(c.lastOK, c.lastWrite)
	return now.Sub(heard) > silenceLimit && now.Sub(acked) > ackSilenceLimit
}

// ackTimeoutLocked assumes the last line or its ok got lost and sends the
// line again. Executing a line twice is accepted over stalling the print.
func (c *Connection) ackTimeoutLocked() bool {
	c.timeoutResends++
	ackTimeouts.Inc()
	last := c.lastTransmitted
	if limit := c.settings.MaxAckTimeoutResends; limit > 0 && c.timeoutResends > limit {
		c.connectionLostLocked(newConnectError(ConnectionTimeout, "printer stopped acknowledging commands", nil))
		return false
	}
	log.Warn().Str("line", last.text).Int("attempt", c.timeoutResends).
		Msg("no acknowledgment from printer, resending")
	resends.WithLabelValues(resendTimeout).Inc()
	c.waitingForOK = false
	if last.index > 0 {
		if _, ok := c.ring.Get(last.index); ok {
			c.sendIndex = last.index
			return true
		}
	}
	return c.transmitLocked(last)
}

// sendLineLocked frames line, records it for resends and writes it.
func (c *Connection) sendLineLocked(line string) bool {
	c.observeSentLocked(line)
	if !c.settings.Checksums {
		return c.transmitLocked(transmission{text: line, plain: line})
	}
	idx := c.ring.Head() + 1
	text := gcode.WithChecksum(idx, line)
	c.ring.Add(ringEntry{text: text, plain: line})
	c.sendIndex = idx + 1
	return c.transmitLocked(transmission{text: text, plain: line, index: idx})
}

func (c *Connection) transmitLocked(t transmission) bool {
	if _, err := c.transport.Write([]byte(t.text + "\n")); err != nil {
		c.connectionLostLocked(newConnectError(IOException, "failed to write to printer", err))
		return false
	}
	c.lastTransmitted = t
	c.waitingForOK = true
	c.lastWrite = c.clock.Now()
	c.linesSent++
	linesSent.Inc()
	log.Debug().Str("line", t.text).Msg("sent")
	notifications.LineSent(c.ns, t.text)
	c.updateDetailLocked(t.plain)
	return true
}

// writeRawLocked bypasses the chain, the ring and ack tracking. It is only
// used when the link is about to close.
func (c *Connection) writeRawLocked(line string) {
	if c.transport == nil {
		return
	}
	if _, err := c.transport.Write([]byte(line + "\n")); err != nil {
		log.Debug().Err(err).Str("line", line).Msg("error writing raw line")
		return
	}
	notifications.LineSent(c.ns, line)
}

func (c *Connection) updateDetailLocked(line string) {
	if c.state != Printing {
		return
	}
	switch {
	case c.chain.WaitForTemperature.HeatingBed():
		c.setDetailLocked(DetailHeatingBed)
	case c.chain.WaitForTemperature.HeatingHotend():
		c.setDetailLocked(DetailHeatingExtruder)
	case gcode.IsHoming(line):
		c.setDetailLocked(DetailHoming)
	default:
		c.setDetailLocked(DetailPrinting)
	}
}
