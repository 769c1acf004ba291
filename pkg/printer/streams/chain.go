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
	"github.com/jonboulle/clockwork"
	"github.com/printlink/printlink-core/pkg/gcode"
)

// Options configure a chain.
type Options struct {
	Printer PrinterState
	Clock   clockwork.Clock
	// Leveler is applied to moves when set.
	Leveler Leveler
	// OnPauseRequested is called when the stream itself starts a pause.
	OnPauseRequested func(PauseReason)
	// Queued carries commands over from a previous chain.
	Queued   []string
	Settings Settings
}

// Chain is the assembled filter chain. Stages that the connection or API
// adjust at runtime are exposed by name.
type Chain struct {
	top Stream

	Progress            *ProgressStream
	Pause               *PauseStream
	Queued              *QueuedStream
	BabySteps           *BabyStepStream
	WaitForTemperature  *WaitForTemperatureStream
	ExtrusionMultiplier *ExtrusionMultiplierStream
	FeedRateMultiplier  *FeedRateMultiplierStream
	RequestTemperatures *RequestTemperaturesStream
	ToolChange          *ToolChangeStream
}

// NewChain assembles the stages on top of source, bottom to top: progress,
// pause, queue, relative to absolute, tool change, baby steps, segmenting,
// leveling, heat wait, extrusion and feed multipliers, temperature polling,
// software endstops, no-op removal and the write rewrite.
func NewChain(source Source, opts Options) *Chain {
	settings := opts.Settings.withDefaults()
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if settings.Recovery != nil {
		source = NewRecoveryStream(source, *settings.Recovery)
	}

	c := &Chain{}
	c.Progress = NewProgressStream(source)
	c.Pause = NewPauseStream(c.Progress, settings, opts.OnPauseRequested)
	c.Queued = NewQueuedStream(c.Pause)
	for _, l := range opts.Queued {
		c.Queued.Add(l, false)
	}

	var s Stream = NewRelativeToAbsoluteStream(c.Queued)
	if settings.ExtruderCount > 1 {
		c.ToolChange = NewToolChangeStream(s, settings)
		s = NewToolSpeedStream(c.ToolChange, settings)
	}
	c.BabySteps = NewBabyStepStream(s, settings.BabyStepOffset)
	s = c.BabySteps
	if settings.SplitLongMoves {
		s = NewMaxLengthStream(s, settings.MaxSegmentLength)
	}
	if opts.Leveler != nil {
		s = NewLevelingStream(s, opts.Leveler)
	}
	c.WaitForTemperature = NewWaitForTemperatureStream(s, opts.Printer, settings.TemperatureTolerance)
	c.ExtrusionMultiplier = NewExtrusionMultiplierStream(c.WaitForTemperature, settings.ExtrusionRatio)
	c.FeedRateMultiplier = NewFeedRateMultiplierStream(c.ExtrusionMultiplier, settings.FeedRateRatio)
	c.RequestTemperatures = NewRequestTemperaturesStream(c.FeedRateMultiplier, clock, settings.TemperatureInterval)
	s = c.RequestTemperatures
	if settings.SoftwareEndstops {
		s = NewSoftwareEndstopStream(s, settings.BedMin, settings.BedMax)
	}
	s = NewRemoveNOPsStream(s)
	c.top = NewRewriteStream(s, settings.WriteRewrite)
	return c
}

func (c *Chain) ReadLine() (string, bool) {
	return c.top.ReadLine()
}

func (c *Chain) SetPrinterPosition(m gcode.Move) {
	c.top.SetPrinterPosition(m)
}

func (c *Chain) Close() error {
	return c.top.Close()
}

// PercentComplete of the print source.
func (c *Chain) PercentComplete() float64 {
	return c.Progress.PercentComplete()
}

// Cancel ends the print: the source is cut off and any pause or heater wait
// is abandoned. Queued user commands survive.
func (c *Chain) Cancel() {
	c.Progress.Cancel()
	c.Pause.Cancel()
	c.WaitForTemperature.Cancel()
}
