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

package streams

import "strings"

// QueuedStream holds user-injected commands. Queued lines always go out
// ahead of whatever the stage below has to offer.
type QueuedStream struct {
	link
	queue []string
}

func NewQueuedStream(source Stream) *QueuedStream {
	return &QueuedStream{link: link{source: source}}
}

// Add queues line, which may hold several commands separated by newlines.
// With forceTop the commands jump ahead of anything already queued.
func (s *QueuedStream) Add(line string, forceTop bool) {
	var lines []string
	for _, l := range strings.Split(line, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return
	}
	if forceTop {
		s.queue = append(lines, s.queue...)
		return
	}
	s.queue = append(s.queue, lines...)
}

// Clear drops every queued command.
func (s *QueuedStream) Clear() {
	s.queue = nil
}

// Pending returns a copy of the queued commands.
func (s *QueuedStream) Pending() []string {
	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}

func (s *QueuedStream) Count() int {
	return len(s.queue)
}

func (s *QueuedStream) ReadLine() (string, bool) {
	if len(s.queue) > 0 {
		line := s.queue[0]
		s.queue = s.queue[1:]
		return line, true
	}
	return s.source.ReadLine()
}
