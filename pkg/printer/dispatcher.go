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
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/notifications"
	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/printlink/printlink-core/pkg/printer/streams"
	"github.com/rs/zerolog/log"
)

// maxReadBuffer drops a partial line that never ends, e.g. binary noise.
const maxReadBuffer = 4096

type replyKind uint16

const (
	replyStart replyKind = 1 << iota
	replyAck
	replyResend
	replyPosition
	replyTemperature
	replyFirmware
	replySdProgress
	replySdDone
	replyError
	replyBusy
)

type replyPattern struct {
	text string
	kind replyKind
	// word requires the match to start a word, so EXTRUDER_COUNT: is not
	// a temperature.
	word bool
}

// Both tables are checked for every line, so one reply can trigger several
// handlers. Each handler runs at most once per line.
var (
	startsWithPatterns = []replyPattern{
		{text: "start", kind: replyStart},
		{text: "ok", kind: replyAck},
		{text: "wait", kind: replyAck},
		{text: "rs ", kind: replyResend},
		{text: "RS:", kind: replyResend},
		{text: "SD printing byte", kind: replySdProgress},
		{text: "Done printing file", kind: replySdDone},
		{text: "FIRMWARE_NAME:", kind: replyFirmware},
		{text: "X:", kind: replyPosition},
		{text: "C:", kind: replyPosition},
	}
	containsPatterns = []replyPattern{
		{text: "T:", kind: replyTemperature, word: true},
		{text: "B:", kind: replyTemperature, word: true},
		{text: "ok C:", kind: replyPosition},
		{text: "ok X:", kind: replyPosition},
		{text: "Resend:", kind: replyResend},
		{text: "busy:", kind: replyBusy},
		{text: "MINTEMP", kind: replyError},
		{text: "MAXTEMP", kind: replyError},
		{text: "Thermal Runaway", kind: replyError},
		{text: "THERMAL RUNAWAY", kind: replyError},
		{text: "Heating failed", kind: replyError},
		{text: "Printer halted", kind: replyError},
		{text: "kill() called", kind: replyError},
		{text: "Homing Failed", kind: replyError},
		{text: "Probing Failed", kind: replyError},
		{text: "M999", kind: replyError},
	}
)

func classifyReply(line string) replyKind {
	var kinds replyKind
	for _, p := range startsWithPatterns {
		if strings.HasPrefix(line, p.text) {
			kinds |= p.kind
		}
	}
	for _, p := range containsPatterns {
		if p.word && containsWord(line, p.text) || !p.word && strings.Contains(line, p.text) {
			kinds |= p.kind
		}
	}
	return kinds
}

func containsWord(line, word string) bool {
	for start := 0; ; {
		i := strings.Index(line[start:], word)
		if i < 0 {
			return false
		}
		i += start
		if i == 0 || line[i-1] == ' ' {
			return true
		}
		start = i + 1
	}
}

// feedLocked appends raw bytes from the printer and handles every complete
// line.
func (c *Connection) feedLocked(data []byte) {
	c.readBuf = append(c.readBuf, data...)
	for {
		i := bytes.IndexByte(c.readBuf, '\n')
		if i < 0 {
			break
		}
		raw := string(c.readBuf[:i])
		c.readBuf = c.readBuf[i+1:]
		line := strings.TrimSpace(strings.ReplaceAll(raw, "\r", ""))
		if line == "" {
			continue
		}
		primary, extra := c.readRewrite.Apply(line)
		c.handleLineLocked(primary)
		for _, l := range extra {
			c.handleLineLocked(l)
		}
	}
	if len(c.readBuf) > maxReadBuffer {
		log.Warn().Int("bytes", len(c.readBuf)).Msg("discarding unterminated printer reply")
		c.readBuf = nil
	}
	if len(c.readBuf) == 0 {
		c.readBuf = nil
	}
}

func (c *Connection) handleLineLocked(line string) {
	if line == "" {
		return
	}
	now := c.clock.Now()
	c.lastRead = now
	linesReceived.Inc()
	kinds := classifyReply(line)

	if kinds&(replyAck|replyTemperature) == 0 {
		log.Debug().Str("line", line).Msg("received")
		notifications.LineReceived(c.ns, line)
	}

	if kinds&replyStart != 0 {
		c.handleStartLocked()
	}
	if kinds&replyResend != 0 {
		c.handleResendLocked(line)
	}
	if kinds&replyPosition != 0 {
		c.handlePositionLocked(line)
	}
	if kinds&replyTemperature != 0 {
		c.handleTemperaturesLocked(line)
	}
	if kinds&replyFirmware != 0 {
		c.handleFirmwareLocked(line)
	}
	if kinds&replySdProgress != 0 {
		c.handleSdProgressLocked(line)
	}
	if kinds&replySdDone != 0 {
		c.finishSdPrintLocked()
	}
	if kinds&replyError != 0 {
		c.handleFirmwareErrorLocked(line)
	}
	if kinds&replyBusy != 0 {
		// the firmware is still working on the last line
		c.lastWrite = now
	}
	if kinds&replyAck != 0 {
		c.waitingForOK = false
		c.timeoutResends = 0
		c.lastOK = now
	}
}

func (c *Connection) malformedLocked(line, field string) {
	c.rt.malformed++
	malformedReplies.Inc()
	log.Debug().Str("line", line).Str("field", field).Msg("malformed printer reply")
}

// handleStartLocked runs when the firmware (re)boots: its line counter is
// back at zero.
func (c *Connection) handleStartLocked() {
	if c.ring.Head() >= c.ring.start || c.sendIndex > 1 {
		log.Warn().Msg("printer restarted, resetting line numbers")
		c.resetProtocolLocked()
	}
	c.waitingForOK = false
	if c.state.PrintIsActive() && c.state != PrintingFromSd {
		msg := "printer restarted during print"
		c.lastError = msg
		notifications.PrinterError(c.ns, models.ErrorParams{Message: msg})
		c.chain.Pause.DoPause(streams.PauseFirmwareError)
	}
}

func resendTarget(line string) (int, bool) {
	for _, marker := range []string{"Resend:", "RS:", "rs "} {
		if v, ok := gcode.FirstNumberAfter(marker, line); ok {
			return int(v), true
		}
	}
	// "rs N12" form
	if v, ok := gcode.FirstNumberAfter("rs N", line); ok {
		return int(v), true
	}
	return 0, false
}

// handleResendLocked rewinds the send cursor to the requested line. A request
// for the next unsent line is a no-op. Line 1 replays from the start after
// a numbering reset. Anything outside the ring cannot be recovered: the
// numbering is reset and the lost lines are reported.
func (c *Connection) handleResendLocked(line string) {
	n, ok := resendTarget(line)
	if !ok {
		c.malformedLocked(line, "resend")
		return
	}
	head := c.ring.Head()
	switch {
	case n == head+1:
		log.Debug().Int("line", n).Msg("resend of next line requested, ignoring")
	case n == 1 && c.ring.Oldest() == 1 && head >= 1:
		log.Warn().Int("line", n).Msg("printer requested resend from first line")
		resends.WithLabelValues(resendFirmware).Inc()
		c.needsReset = c.settings.Checksums
		c.sendIndex = 1
	case n > 1 && n >= c.ring.Oldest() && n <= head:
		log.Warn().Int("line", n).Msg("printer requested resend")
		resends.WithLabelValues(resendFirmware).Inc()
		c.sendIndex = n
	case n > head+1:
		log.Warn().Int("line", n).Int("head", head).Msg("resend requested for unsent line, resetting")
		c.resetProtocolLocked()
	default:
		resends.WithLabelValues(resendUnrecoverable).Inc()
		err := fmt.Errorf("%w: line %d, oldest kept %d", ErrLineNotRecoverable, n, c.ring.Oldest())
		log.Error().Err(err).Msg("resend not possible")
		c.lastError = err.Error()
		notifications.PrinterError(c.ns, models.ErrorParams{Message: err.Error(), Line: line})
		c.resetProtocolLocked()
	}
	// Repetier acknowledges a resend request on its own; Marlin follows it
	// with an ok.
	if c.rt.firmware.Type == FirmwareRepetier {
		c.waitingForOK = false
	}
}

// parsePosition reads an M114 reply. The stepper counts after "Count" are
// ignored. Missing Y, Z or E keep the values of prev.
func parsePosition(line string, prev gcode.Move) (m gcode.Move, missing []string, ok bool) {
	if i := strings.Index(line, "Count"); i >= 0 {
		line = line[:i]
	}
	x, ok := gcode.FirstNumberAfter("X:", line)
	if !ok {
		return prev, []string{"X"}, false
	}
	m = prev
	m.Position.X = x
	if y, ok := gcode.FirstNumberAfter("Y:", line); ok {
		m.Position.Y = y
	} else {
		missing = append(missing, "Y")
	}
	if z, ok := gcode.FirstNumberAfter("Z:", line); ok {
		m.Position.Z = z
	} else {
		missing = append(missing, "Z")
	}
	if e, ok := gcode.FirstNumberAfter("E:", line); ok {
		m.Extrusion = e
	}
	return m, missing, true
}

func (c *Connection) handlePositionLocked(line string) {
	prev := c.rt.lastReported
	base := prev
	if base.IsNowhere() {
		base = gcode.Move{FeedRate: c.rt.destination.FeedRate}
	}
	m, missing, ok := parsePosition(line, base)
	for _, f := range missing {
		c.malformedLocked(line, f)
	}
	if !ok {
		return
	}
	c.rt.lastReported = m
	c.waitingForPosition = false
	if c.homingRequested {
		c.rt.homing = m
		c.homingRequested = false
	}
	dest := m
	dest.FeedRate = c.rt.destination.FeedRate
	changed := dest != c.rt.destination
	c.rt.destination = dest
	c.chain.SetPrinterPosition(m)
	if changed {
		notifications.Destination(c.ns, positionResponse(dest))
	}
}

type tempReading struct {
	heater string
	index  int
	actual float64
	target float64
	// hasTarget is false for replies without the /target part.
	hasTarget bool
}

// parseTemperatures reads heater reports such as "T:210.1 /210.0 B:60 /60"
// or "T0:200 /200 T1:25 /0". A bare T: is the active extruder and is ignored
// when numbered extruders are present.
func parseTemperatures(line string, activeExtruder int) (readings []tempReading, malformed int) {
	fields := strings.Fields(line)
	var bare *tempReading
	numbered := false
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		name, value, found := strings.Cut(f, ":")
		if !found || name == "" || (name[0] != 'T' && name[0] != 'B') {
			continue
		}
		r := tempReading{heater: "hotend", index: activeExtruder}
		switch {
		case name == "B":
			r.heater = "bed"
		case name == "T":
		case name[0] == 'T':
			idx, err := strconv.Atoi(name[1:])
			if err != nil {
				continue
			}
			r.index = idx
			numbered = true
		default:
			continue
		}

		actualText, targetText, inline := strings.Cut(value, "/")
		actual, err := strconv.ParseFloat(actualText, 64)
		if err != nil {
			malformed++
			continue
		}
		r.actual = actual
		if !inline && i+1 < len(fields) && strings.HasPrefix(fields[i+1], "/") {
			targetText = fields[i+1][1:]
			inline = true
			i++
		}
		if inline {
			if t, err := strconv.ParseFloat(targetText, 64); err == nil {
				r.target = t
				r.hasTarget = true
			} else {
				malformed++
			}
		}
		if name == "T" {
			bare = &r
			continue
		}
		readings = append(readings, r)
	}
	if bare != nil && !numbered {
		readings = append(readings, *bare)
	}
	return readings, malformed
}

func (c *Connection) handleTemperaturesLocked(line string) {
	readings, malformed := parseTemperatures(line, c.rt.activeExtruder)
	for range malformed {
		c.malformedLocked(line, "temperature")
	}
	for _, r := range readings {
		var actual, target *float64
		label := r.heater
		switch r.heater {
		case "bed":
			actual, target = &c.rt.bedActual, &c.rt.bedTarget
		default:
			if !validExtruder(r.index) {
				c.malformedLocked(line, "extruder")
				continue
			}
			actual, target = &c.rt.hotendActual[r.index], &c.rt.hotendTarget[r.index]
			label = "hotend" + strconv.Itoa(r.index)
		}
		changed := *actual != r.actual
		*actual = r.actual
		if r.hasTarget {
			changed = changed || *target != r.target
			*target = r.target
		}
		temperatures.WithLabelValues(label).Set(r.actual)
		if changed {
			notifications.Temperature(c.ns, models.TemperatureParams{
				Heater: r.heater,
				Index:  r.index,
				Actual: *actual,
				Target: *target,
			})
		}
	}
}

var firmwareKey = regexp.MustCompile(` [A-Z_]+:`)

// firmwareField returns the value of key in an M115 reply, which runs until
// the next KEY: token.
func firmwareField(line, key string) string {
	i := strings.Index(line, key+":")
	if i < 0 {
		return ""
	}
	rest := line[i+len(key)+1:]
	if loc := firmwareKey.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]]
	}
	return strings.TrimSpace(rest)
}

func classifyFirmware(name string) FirmwareType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "marlin"):
		return FirmwareMarlin
	case strings.Contains(lower, "repetier"):
		return FirmwareRepetier
	case strings.Contains(lower, "sprinter"):
		return FirmwareSprinter
	case strings.Contains(lower, "smoothie"):
		return FirmwareSmoothie
	default:
		return FirmwareUnknown
	}
}

func parseFirmware(line string) Firmware {
	fw := Firmware{
		Name:        firmwareField(line, "FIRMWARE_NAME"),
		Version:     firmwareField(line, "FIRMWARE_VERSION"),
		MachineType: firmwareField(line, "MACHINE_TYPE"),
	}
	fw.Type = classifyFirmware(fw.Name)
	if fw.Version == "" {
		if parts := strings.Fields(fw.Name); len(parts) > 1 {
			fw.Version = parts[1]
		}
	}
	if n, err := strconv.Atoi(firmwareField(line, "EXTRUDER_COUNT")); err == nil {
		fw.ExtruderSlot = n
	}
	return fw
}

func (c *Connection) handleFirmwareLocked(line string) {
	fw := parseFirmware(line)
	if fw == c.rt.firmware {
		return
	}
	c.rt.firmware = fw
	log.Info().Str("name", fw.Name).Str("version", fw.Version).
		Str("type", fw.Type.String()).Msg("printer firmware identified")
	notifications.Firmware(c.ns, firmwareResponse(fw))
}

func (c *Connection) handleSdProgressLocked(line string) {
	done, ok := gcode.FirstNumberAfter("byte ", line)
	if !ok {
		c.malformedLocked(line, "sd progress")
		return
	}
	total, ok := gcode.FirstNumberAfter("/", line)
	if !ok || total <= 0 {
		c.malformedLocked(line, "sd progress")
		return
	}
	c.sdPercent = min(100, done/total*100)
}

// handleFirmwareErrorLocked latches the first firmware error of a
// connection and pauses the print. Later errors are only logged.
func (c *Connection) handleFirmwareErrorLocked(line string) {
	if c.errorReported {
		log.Error().Str("line", line).Msg("printer reported another error")
		return
	}
	c.errorReported = true
	c.lastError = line
	log.Error().Str("line", line).Msg("printer reported an error")
	notifications.PrinterError(c.ns, models.ErrorParams{Message: line, Line: line})

	switch c.state {
	case PrintingFromSd:
		c.chain.Queued.Add("M25", true)
		c.setStateLocked(Paused)
		c.pauseRequestedLocked(streams.PauseFirmwareError)
	case Printing:
		c.chain.Pause.DoPause(streams.PauseFirmwareError)
	default:
	}
}
