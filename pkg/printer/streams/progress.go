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

// ProgressStream reports completion of the source below it and counts layer
// changes. It is also where a print is cut off: once canceled it ends the
// stream regardless of what remains in the file.
type ProgressStream struct {
	source   Source
	layer    int
	canceled bool
}

func NewProgressStream(source Source) *ProgressStream {
	return &ProgressStream{source: source}
}

func (s *ProgressStream) ReadLine() (string, bool) {
	if s.canceled {
		return "", false
	}
	line, ok := s.source.ReadLine()
	if ok && gcode.IsLayerChange(line) {
		s.layer++
	}
	return line, ok
}

// PercentComplete of the underlying source, 0 to 100.
func (s *ProgressStream) PercentComplete() float64 {
	return s.source.PercentComplete()
}

// Layer is the number of layer changes read so far.
func (s *ProgressStream) Layer() int {
	return s.layer
}

// Cancel ends the stream on the next read.
func (s *ProgressStream) Cancel() {
	s.canceled = true
}

func (s *ProgressStream) Canceled() bool {
	return s.canceled
}

func (s *ProgressStream) SetPrinterPosition(m gcode.Move) {
	s.source.SetPrinterPosition(m)
}

func (s *ProgressStream) Close() error {
	return s.source.Close()
}
