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

// Package gcode implements the line-level G-code helpers shared by the
// connection and the stream stages: number extraction, checksum framing,
// command classification and the printer move model.
package gcode

import (
	"math"
	"strconv"
	"strings"
)

// CommentMarker starts a comment that runs to the end of the line.
const CommentMarker = ';'

// Checksum returns the XOR of every byte in line.
func Checksum(line string) byte {
	var cs byte
	for i := 0; i < len(line); i++ {
		cs ^= line[i]
	}
	return cs
}

// WithChecksum frames line for transmission as "N<index> <line>*<checksum>".
// The checksum covers the line number prefix.
func WithChecksum(index int, line string) string {
	numbered := "N" + strconv.Itoa(index) + " " + line
	return numbered + "*" + strconv.Itoa(int(Checksum(numbered)))
}

// StripComment removes a trailing ';' comment and surrounding whitespace.
func StripComment(line string) string {
	if i := strings.IndexByte(line, CommentMarker); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// Command returns the first word of line, e.g. "G1", "M104" or "T1".
func Command(line string) string {
	line = StripComment(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}

// numberAt parses a decimal number beginning at s[i], skipping leading spaces.
// It returns the value and the index just past the number.
func numberAt(s string, i int) (value float64, end int, ok bool) {
	for i < len(s) && s[i] == ' ' {
		i++
	}
	start := i
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := 0
	dot := false
scan:
	for i < len(s) {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			break scan
		}
		i++
	}
	if digits == 0 {
		return 0, start, false
	}
	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0, start, false
	}
	return v, i, true
}

// FirstNumberAfter finds the first occurrence of marker in line and parses
// the number directly after it. Text after a ';' comment is never searched.
// On failure ok is false and callers keep their previous value.
func FirstNumberAfter(marker, line string) (value float64, ok bool) {
	return FirstNumberAfterFrom(marker, line, 0)
}

// FirstNumberAfterFrom is FirstNumberAfter starting the search at start.
func FirstNumberAfterFrom(marker, line string, start int) (value float64, ok bool) {
	if i := strings.IndexByte(line, CommentMarker); i >= 0 {
		line = line[:i]
	}
	if start < 0 || start > len(line) {
		return 0, false
	}
	idx := strings.Index(line[start:], marker)
	if idx < 0 {
		return 0, false
	}
	v, _, ok := numberAt(line, start+idx+len(marker))
	return v, ok
}

// FirstStringAfter returns the text following marker up to the first byte in
// stopAt, or to the end of line.
func FirstStringAfter(marker, line, stopAt string) (string, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	rest := line[idx+len(marker):]
	if stopAt != "" {
		if end := strings.IndexAny(rest, stopAt); end >= 0 {
			rest = rest[:end]
		}
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}

// wordIndex returns the index of the parameter letter that starts a word in
// the non-comment part of line, or -1. The command word at index 0 is never
// a parameter.
func wordIndex(line string, letter byte) int {
	end := len(line)
	if i := strings.IndexByte(line, CommentMarker); i >= 0 {
		end = i
	}
	for i := 1; i < end; i++ {
		if line[i] != letter {
			continue
		}
		if line[i-1] == ' ' || line[i-1] == '\t' {
			return i
		}
	}
	return -1
}

// HasParameter reports whether line carries the parameter word letter.
func HasParameter(line string, letter byte) bool {
	return wordIndex(line, letter) >= 0
}

// Parameter returns the numeric value of parameter letter on line.
func Parameter(line string, letter byte) (float64, bool) {
	i := wordIndex(line, letter)
	if i < 0 {
		return 0, false
	}
	v, _, ok := numberAt(line, i+1)
	return v, ok
}

// ReplaceParameter rewrites the value of parameter letter. If the line does
// not carry the parameter it is appended before any comment.
func ReplaceParameter(line string, letter byte, value float64) string {
	formatted := string(letter) + FormatNumber(value, precisionFor(letter))
	i := wordIndex(line, letter)
	if i < 0 {
		code, comment := splitComment(line)
		return strings.TrimRight(code, " ") + " " + formatted + comment
	}
	end := i + 1
	for end < len(line) && line[end] != ' ' && line[end] != '\t' && line[end] != CommentMarker {
		end++
	}
	return line[:i] + formatted + line[end:]
}

func splitComment(line string) (code, comment string) {
	if i := strings.IndexByte(line, CommentMarker); i >= 0 {
		return line[:i], " " + line[i:]
	}
	return line, ""
}

func precisionFor(letter byte) int {
	switch letter {
	case 'E':
		return 5
	case 'F', 'S':
		return 1
	default:
		return 3
	}
}

// FormatNumber renders v with at most prec decimals and no trailing zeros.
func FormatNumber(v float64, prec int) string {
	scale := math.Pow(10, float64(prec))
	r := math.Round(v*scale) / scale
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// LineIsMovement reports whether line is a G0 or G1 move.
func LineIsMovement(line string) bool {
	return strings.HasPrefix(line, "G0 ") || strings.HasPrefix(line, "G1 ")
}

// IsLayerChange reports whether line is a slicer layer-change comment.
func IsLayerChange(line string) bool {
	return strings.HasPrefix(line, ";LAYER:") ||
		strings.HasPrefix(line, "; LAYER:") ||
		strings.HasPrefix(line, "; layer ")
}

// IsHoming reports whether line homes one or more axes.
func IsHoming(line string) bool {
	return Command(line) == "G28"
}

// IsHeatAndWait reports whether line blocks the firmware until a heater
// reaches temperature.
func IsHeatAndWait(line string) bool {
	switch Command(line) {
	case "M109", "M190":
		return true
	default:
		return false
	}
}

// ToolIndex parses a "T<n>" tool select command.
func ToolIndex(line string) (int, bool) {
	cmd := Command(line)
	if len(cmd) < 2 || cmd[0] != 'T' {
		return 0, false
	}
	n, err := strconv.Atoi(cmd[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
