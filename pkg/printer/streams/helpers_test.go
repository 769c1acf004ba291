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
	"testing"
)

func sourceOf(lines ...string) *FileSource {
	text := strings.Join(lines, "\n") + "\n"
	return NewSource(strings.NewReader(text), int64(len(text)))
}

// drain reads s to the end and returns the non-empty lines. It gives up
// after limit reads so a stuck stage fails the test instead of hanging it.
func drain(t *testing.T, s Stream) []string {
	t.Helper()
	return drainN(t, s, 10_000)
}

func drainN(t *testing.T, s Stream, limit int) []string {
	t.Helper()
	var out []string
	for range limit {
		line, ok := s.ReadLine()
		if !ok {
			return out
		}
		if line != "" {
			out = append(out, line)
		}
	}
	t.Fatalf("stream did not end after %d reads, got %q", limit, out)
	return nil
}

// take reads until n non-empty lines have been produced.
func take(t *testing.T, s Stream, n int) []string {
	t.Helper()
	var out []string
	for range 10_000 {
		if len(out) == n {
			return out
		}
		line, ok := s.ReadLine()
		if !ok {
			t.Fatalf("stream ended after %q, wanted %d lines", out, n)
		}
		if line != "" {
			out = append(out, line)
		}
	}
	t.Fatalf("only %d of %d lines produced: %q", len(out), n, out)
	return nil
}

type fakePrinter struct {
	hotends []float64
	targets []float64
	bed     float64
	bedSet  float64
}

func newFakePrinter() *fakePrinter {
	return &fakePrinter{hotends: make([]float64, 2), targets: make([]float64, 2)}
}

func (p *fakePrinter) ActualHotendTemperature(i int) float64 { return p.hotends[i] }
func (p *fakePrinter) TargetHotendTemperature(i int) float64 { return p.targets[i] }
func (p *fakePrinter) ActualBedTemperature() float64         { return p.bed }
func (p *fakePrinter) TargetBedTemperature() float64         { return p.bedSet }
