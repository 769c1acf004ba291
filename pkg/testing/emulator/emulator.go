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

// Package emulator is a scripted Marlin-style firmware. It implements the
// printer transport methods directly, so a connection can be driven against
// it in tests, and it can be served over TCP for manual testing.
package emulator

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/printlink/printlink-core/pkg/gcode"
)

var ErrClosed = errors.New("emulator closed")

type resendScript struct {
	after int
	from  int
}

// Emulator answers G-code lines like a printer would. Heaters reach their
// target instantly and moves complete instantly.
type Emulator struct {
	done    chan struct{}
	notify  chan struct{}
	profile Profile

	dropAck  map[int]bool
	resends  []resendScript
	received []string
	commands []string
	in       []byte
	out      bytes.Buffer
	sdFile   string

	mu sync.Mutex

	hotend     []float64
	hotendSet  []float64
	pos        gcode.Move
	bed        float64
	bedSet     float64
	lastLine   int
	sdPos      int
	sdSize     int
	ignore     int
	timeout    time.Duration
	relative   bool
	sdPrinting bool
	closed     bool
	silent     bool
}

// New starts an emulator that has just booted: the profile's start message
// is waiting to be read.
//
//nolint:gocritic // profile copied so callers can reuse it
func New(profile Profile) *Emulator {
	if profile.Extruders < 1 {
		profile.Extruders = 1
	}
	e := &Emulator{
		profile:   profile,
		done:      make(chan struct{}),
		notify:    make(chan struct{}, 1),
		dropAck:   make(map[int]bool),
		hotend:    make([]float64, profile.Extruders),
		hotendSet: make([]float64, profile.Extruders),
		timeout:   100 * time.Millisecond,
		ignore:    profile.BootDelayLines,
	}
	e.boot()
	return e
}

func (e *Emulator) boot() {
	e.lastLine = 0
	e.sdPrinting = false
	e.relative = false
	if e.profile.StartMessage != "" {
		e.replyLocked(e.profile.StartMessage)
	}
}

func (e *Emulator) signal() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Emulator) replyLocked(lines ...string) {
	for _, l := range lines {
		e.out.WriteString(l)
		e.out.WriteByte('\n')
	}
	e.signal()
}

// Read returns pending replies, or (0, nil) once the read timeout passes
// without any.
func (e *Emulator) Read(p []byte) (int, error) {
	e.mu.Lock()
	timeout := e.timeout
	e.mu.Unlock()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return 0, ErrClosed
		}
		if e.out.Len() > 0 {
			n, _ := e.out.Read(p)
			e.mu.Unlock()
			return n, nil
		}
		e.mu.Unlock()
		select {
		case <-e.done:
			return 0, ErrClosed
		case <-e.notify:
		case <-timer.C:
			return 0, nil
		}
	}
}

func (e *Emulator) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	e.in = append(e.in, p...)
	for {
		i := bytes.IndexByte(e.in, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(e.in[:i]))
		e.in = e.in[i+1:]
		if line != "" {
			e.handleLocked(line)
		}
	}
	return len(p), nil
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.done)
	}
	return nil
}

func (e *Emulator) SetReadTimeout(t time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeout = t
	return nil
}

// ResetBoard reboots the emulated firmware.
func (e *Emulator) ResetBoard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boot()
	return nil
}

// DropAckOnce executes line n but withholds its ok, once.
func (e *Emulator) DropAckOnce(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropAck[n] = true
}

// ResendOnce answers line after with a request to resend from line from,
// once.
func (e *Emulator) ResendOnce(after, from int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resends = append(e.resends, resendScript{after: after, from: from})
}

// Inject queues raw output, e.g. an error message.
func (e *Emulator) Inject(lines ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replyLocked(lines...)
}

// SetSilent stops every reply until turned off again.
func (e *Emulator) SetSilent(silent bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.silent = silent
}

// Received is every line written to the emulator, framing included.
func (e *Emulator) Received() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.received...)
}

// Commands is every executed command without line number or checksum.
func (e *Emulator) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// CountCommand counts executed commands whose first word is cmd.
func (e *Emulator) CountCommand(cmd string) int {
	n := 0
	for _, c := range e.Commands() {
		if gcode.Command(c) == cmd {
			n++
		}
	}
	return n
}

// LastLine is the last accepted line number.
func (e *Emulator) LastLine() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastLine
}

func (e *Emulator) Position() gcode.Move {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// splitNumbered takes "N12 G1 X1*34" apart and checks its checksum.
func splitNumbered(line string) (n int, body string, ok bool) {
	star := strings.LastIndexByte(line, '*')
	space := strings.IndexByte(line, ' ')
	if star < 0 || space < 0 || space > star {
		return 0, "", false
	}
	n, err := strconv.Atoi(line[1:space])
	if err != nil {
		return 0, "", false
	}
	cs, err := strconv.Atoi(line[star+1:])
	if err != nil || byte(cs) != gcode.Checksum(line[:star]) {
		return n, "", false
	}
	return n, strings.TrimSpace(line[space+1 : star]), true
}

func (e *Emulator) requestResendLocked(from int, reason string) {
	e.replyLocked("Error:"+reason+", Last Line: "+strconv.Itoa(e.lastLine),
		"Resend: "+strconv.Itoa(from))
	if !e.profile.Repetier {
		e.replyLocked("ok")
	}
}

func (e *Emulator) handleLocked(line string) {
	e.received = append(e.received, line)
	if e.ignore > 0 {
		e.ignore--
		return
	}
	if e.silent {
		return
	}

	body := line
	number := -1
	if strings.HasPrefix(line, "N") {
		n, b, ok := splitNumbered(line)
		if !ok {
			e.requestResendLocked(e.lastLine+1, "checksum mismatch")
			return
		}
		isReset := gcode.Command(b) == "M110"
		if !isReset && n != e.lastLine+1 {
			e.requestResendLocked(e.lastLine+1, "Line Number is not Last Line Number+1")
			return
		}
		for i, r := range e.resends {
			if r.after == n {
				e.resends = append(e.resends[:i], e.resends[i+1:]...)
				e.lastLine = r.from - 1
				e.requestResendLocked(r.from, "scripted")
				return
			}
		}
		e.lastLine = n
		number = n
		body = b
	}

	e.commands = append(e.commands, body)
	reply := e.executeLocked(body)
	e.replyLocked(reply...)
	if number >= 0 && e.dropAck[number] {
		delete(e.dropAck, number)
		return
	}
	e.replyLocked("ok")
}

func (e *Emulator) executeLocked(line string) []string {
	cmd := gcode.Command(line)
	if extra, ok := e.profile.Replies[cmd]; ok {
		return strings.Split(extra, "\n")
	}
	switch cmd {
	case "M110":
		if n, ok := gcode.Parameter(line, 'N'); ok {
			e.lastLine = int(n)
		} else {
			e.lastLine = 0
		}
	case "M105":
		return []string{e.temperatureReportLocked()}
	case "M104", "M109":
		idx := 0
		if t, ok := gcode.Parameter(line, 'T'); ok {
			idx = int(t)
		}
		if s, ok := gcode.Parameter(line, 'S'); ok && idx >= 0 && idx < len(e.hotend) {
			e.hotendSet[idx] = s
			e.hotend[idx] = s
		}
	case "M140", "M190":
		if s, ok := gcode.Parameter(line, 'S'); ok {
			e.bedSet = s
			e.bed = s
		}
	case "M114":
		return []string{fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f E:%.2f Count X:0 Y:0 Z:0",
			e.pos.Position.X, e.pos.Position.Y, e.pos.Position.Z, e.pos.Extrusion)}
	case "M115":
		return []string{fmt.Sprintf(
			"FIRMWARE_NAME:%s SOURCE_CODE_URL:https://example.invalid PROTOCOL_VERSION:1.0 MACHINE_TYPE:%s EXTRUDER_COUNT:%d",
			e.profile.FirmwareName, e.profile.MachineType, e.profile.Extruders)}
	case "G90":
		e.relative = false
	case "G91":
		e.relative = true
	case "G28":
		e.pos.Position = gcode.Vec3{}
	case "G92":
		e.pos = gcode.ParseMove(line, e.pos)
	case "G0", "G1":
		if e.relative {
			d := gcode.ParseMove(line, gcode.Move{})
			e.pos.Position = e.pos.Position.Add(d.Position)
			e.pos.Extrusion += d.Extrusion
		} else {
			e.pos = gcode.ParseMove(line, e.pos)
		}
	case "M23":
		name := strings.TrimSpace(strings.TrimPrefix(line, "M23"))
		size, ok := e.profile.SdFiles[name]
		if !ok {
			return []string{"open failed, File: " + name + "."}
		}
		e.sdFile, e.sdSize, e.sdPos = name, size, 0
		return []string{fmt.Sprintf("File opened: %s Size: %d", name, size), "File selected"}
	case "M24":
		if e.sdFile != "" {
			e.sdPrinting = true
		}
	case "M25":
		e.sdPrinting = false
	case "M27":
		return e.sdStatusLocked()
	case "M30":
		name := strings.TrimSpace(strings.TrimPrefix(line, "M30"))
		if _, ok := e.profile.SdFiles[name]; !ok {
			return []string{"Deletion failed, File: " + name + "."}
		}
		delete(e.profile.SdFiles, name)
		return []string{"File deleted:" + name}
	}
	return nil
}

func (e *Emulator) temperatureReportLocked() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "T:%.2f /%.2f B:%.2f /%.2f", e.hotend[0], e.hotendSet[0], e.bed, e.bedSet)
	if len(e.hotend) > 1 {
		for i := range e.hotend {
			fmt.Fprintf(&sb, " T%d:%.2f /%.2f", i, e.hotend[i], e.hotendSet[i])
		}
	}
	sb.WriteString(" @:0 B@:0")
	return sb.String()
}

func (e *Emulator) sdStatusLocked() []string {
	if e.sdFile == "" {
		return []string{"Not SD printing"}
	}
	if e.sdPrinting {
		e.sdPos = min(e.sdSize, e.sdPos+e.profile.SdStep)
	}
	lines := []string{fmt.Sprintf("SD printing byte %d/%d", e.sdPos, e.sdSize)}
	if e.sdPos >= e.sdSize {
		e.sdPrinting = false
		e.sdFile = ""
		lines = append(lines, "Done printing file")
	}
	return lines
}
