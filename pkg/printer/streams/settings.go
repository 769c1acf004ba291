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

	"github.com/printlink/printlink-core/pkg/gcode"
)

// Settings is the snapshot of printer configuration a chain is built from.
type Settings struct {
	WriteRewrite          *gcode.RewriteTable
	PauseGCode            string
	ResumeGCode           string
	BeforeToolchangeGCode string
	AfterToolchangeGCode  string
	ToolOffsets           []gcode.Vec3
	ToolSpeedRatios       []float64
	PauseLayers           []int
	BedMin                gcode.Vec3
	BedMax                gcode.Vec3
	BabyStepOffset        gcode.Vec3
	ExtruderCount         int
	FeedRateRatio         float64
	ExtrusionRatio        float64
	MaxSegmentLength      float64
	ResumeFeedRate        float64
	TemperatureTolerance  float64
	TemperatureInterval   time.Duration
	SplitLongMoves        bool
	SoftwareEndstops      bool
	Recovery              *RecoverySettings
}

// RecoverySettings restarts a print part way through after a failure.
type RecoverySettings struct {
	TargetPercent float64
	RaiseZ        float64
	PrimeLength   float64
	FeedRateRatio float64
	ZHomesToMax   bool
}

const (
	defaultResumeFeedRate       = 3000
	defaultTemperatureTolerance = 3
	defaultTemperatureInterval  = time.Second
	defaultMaxSegmentLength     = 5
)

func (s Settings) withDefaults() Settings {
	if s.ExtruderCount < 1 {
		s.ExtruderCount = 1
	}
	if s.FeedRateRatio <= 0 {
		s.FeedRateRatio = 1
	}
	if s.ExtrusionRatio <= 0 {
		s.ExtrusionRatio = 1
	}
	if s.ResumeFeedRate <= 0 {
		s.ResumeFeedRate = defaultResumeFeedRate
	}
	if s.TemperatureTolerance <= 0 {
		s.TemperatureTolerance = defaultTemperatureTolerance
	}
	if s.TemperatureInterval <= 0 {
		s.TemperatureInterval = defaultTemperatureInterval
	}
	if s.MaxSegmentLength <= 0 {
		s.MaxSegmentLength = defaultMaxSegmentLength
	}
	return s
}
