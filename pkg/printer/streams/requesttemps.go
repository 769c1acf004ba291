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

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// RequestTemperaturesStream injects an M105 whenever the poll interval has
// elapsed since temperatures were last requested.
type RequestTemperaturesStream struct {
	link
	clock    clockwork.Clock
	last     time.Time
	interval time.Duration
}

func NewRequestTemperaturesStream(source Stream, clock clockwork.Clock, interval time.Duration) *RequestTemperaturesStream {
	return &RequestTemperaturesStream{
		link:     link{source: source},
		clock:    clock,
		interval: interval,
	}
}

// Requested restarts the interval, e.g. after a user-queued M105 went out.
func (s *RequestTemperaturesStream) Requested() {
	s.last = s.clock.Now()
}

func (s *RequestTemperaturesStream) ReadLine() (string, bool) {
	if s.clock.Since(s.last) >= s.interval {
		s.last = s.clock.Now()
		return "M105", true
	}
	return s.source.ReadLine()
}
