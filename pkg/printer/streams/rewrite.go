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

import "github.com/printlink/printlink-core/pkg/gcode"

// RewriteStream applies the user's write-side regex table as the last step
// before lines are framed for the wire.
type RewriteStream struct {
	link
	table   *gcode.RewriteTable
	pending []string
}

func NewRewriteStream(source Stream, table *gcode.RewriteTable) *RewriteStream {
	return &RewriteStream{link: link{source: source}, table: table}
}

func (s *RewriteStream) ReadLine() (string, bool) {
	if len(s.pending) > 0 {
		line := s.pending[0]
		s.pending = s.pending[1:]
		return line, true
	}
	line, ok := s.source.ReadLine()
	if !ok || line == "" || line == PauseMarker || s.table.Len() == 0 {
		return line, ok
	}
	primary, extra := s.table.Apply(line)
	s.pending = extra
	return primary, true
}
