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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/printlink/printlink-core/pkg/gcode"
	"github.com/spf13/afero"
)

// FileSource reads G-code line by line and reports progress by bytes read.
type FileSource struct {
	reader *bufio.Reader
	closer io.Closer
	size   int64
	read   int64
	done   bool
}

// NewSource wraps r, whose total length is size bytes. r is closed with the
// source when it implements io.Closer.
func NewSource(r io.Reader, size int64) *FileSource {
	s := &FileSource{
		reader: bufio.NewReaderSize(r, 64*1024),
		size:   size,
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenFileSource opens path on fs as a print source.
func OpenFileSource(fs afero.Fs, path string) (*FileSource, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat gcode file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("gcode path %s is a directory", path)
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gcode file %s: %w", path, err)
	}
	return NewSource(f, info.Size()), nil
}

func (s *FileSource) ReadLine() (string, bool) {
	if s.done {
		return "", false
	}
	line, err := s.reader.ReadString('\n')
	s.read += int64(len(line))
	if err != nil {
		// the final line may lack a newline
		s.done = true
		if line == "" || !errors.Is(err, io.EOF) {
			return "", false
		}
	}
	return strings.TrimSpace(line), true
}

// PercentComplete is the share of the file consumed so far.
func (s *FileSource) PercentComplete() float64 {
	if s.size <= 0 {
		if s.done {
			return 100
		}
		return 0
	}
	p := float64(s.read) / float64(s.size) * 100
	if p > 100 {
		p = 100
	}
	return p
}

func (*FileSource) SetPrinterPosition(gcode.Move) {}

func (s *FileSource) Close() error {
	s.done = true
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	if err := c.Close(); err != nil {
		return fmt.Errorf("failed to close gcode source: %w", err)
	}
	return nil
}

// NotPrinting is the idle source used while no job is running. It never
// produces a line and never ends, so only queued commands flow.
type NotPrinting struct{}

func (NotPrinting) ReadLine() (string, bool)      { return "", true }
func (NotPrinting) PercentComplete() float64      { return 0 }
func (NotPrinting) SetPrinterPosition(gcode.Move) {}
func (NotPrinting) Close() error                  { return nil }
