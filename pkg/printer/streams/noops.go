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
	"strings"

	"github.com/printlink/printlink-core/pkg/gcode"
)

// RemoveNOPsStream strips comments and drops lines that would do nothing on
// the printer: blank lines, comment-only lines and bare G0/G1.
type RemoveNOPsStream struct {
	link
}

func NewRemoveNOPsStream(source Stream) *RemoveNOPsStream {
	return &RemoveNOPsStream{link: link{source: source}}
}

// ReadLine skips dropped lines itself so only a real line, or an empty read
// from below, costs the caller a turn.
func (s *RemoveNOPsStream) ReadLine() (string, bool) {
	for {
		line, ok := s.source.ReadLine()
		if !ok || line == "" {
			return line, ok
		}
		if line == PauseMarker {
			return line, true
		}
		line = gcode.StripComment(line)
		switch strings.ToUpper(line) {
		case "", "G0", "G1":
			continue
		}
		return line, true
	}
}
