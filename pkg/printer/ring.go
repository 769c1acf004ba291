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

// ringCapacity is how many sent lines stay available for resend requests.
const ringCapacity = 64

type ringEntry struct {
	// text is exactly what went over the wire, checksum framing included.
	text string
	// plain is the command before framing, used to pick ack timeouts.
	plain string
}

// lineRing maps line numbers to the last ringCapacity transmitted lines.
// Line numbers grow monotonically from start; slot i%ringCapacity holds line
// i until it is overwritten ringCapacity lines later.
type lineRing struct {
	lines [ringCapacity]ringEntry
	head  int
	start int
}

func newLineRing() *lineRing {
	r := &lineRing{}
	r.Reset(1)
	return r
}

// Reset forgets every line; the next Add returns start.
func (r *lineRing) Reset(start int) {
	r.lines = [ringCapacity]ringEntry{}
	r.start = start
	r.head = start - 1
}

// Add stores a line under the next line number and returns that number.
func (r *lineRing) Add(e ringEntry) int {
	r.head++
	r.lines[r.head%ringCapacity] = e
	return r.head
}

// Head is the number of the newest stored line, start-1 when empty.
func (r *lineRing) Head() int {
	return r.head
}

// Oldest is the lowest line number still recoverable.
func (r *lineRing) Oldest() int {
	return max(r.start, r.head-ringCapacity+1)
}

// Len is how many lines are recoverable.
func (r *lineRing) Len() int {
	return max(0, r.head-r.Oldest()+1)
}

func (r *lineRing) Get(i int) (ringEntry, bool) {
	if i < r.Oldest() || i > r.head {
		return ringEntry{}, false
	}
	return r.lines[i%ringCapacity], true
}
