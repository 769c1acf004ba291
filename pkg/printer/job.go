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

import (
	"context"
	"math"
	"time"
)

// PrintJob is the persisted record of one print.
type PrintJob struct {
	Started         time.Time
	Ended           time.Time
	ID              string
	FileName        string
	Path            string
	PercentComplete float64
	RecoveryCount   int
	Finished        bool
	Canceled        bool
	SdCard          bool
}

// Resumable reports whether a print recovery can pick this job up.
func (j *PrintJob) Resumable() bool {
	return j.PercentComplete > 0 && !j.Finished && !j.Canceled && !j.SdCard
}

// JobRepository persists print jobs.
type JobRepository interface {
	// Save inserts or replaces the job.
	Save(ctx context.Context, job *PrintJob) error
	// UpdateProgress raises the stored percentage. A lower value than the
	// one stored is ignored.
	UpdateProgress(ctx context.Context, id string, percent float64) error
}

// nextPercent decides whether current should replace the stored progress.
// Progress is kept to a tenth of a percent, never goes backwards and is
// capped at 100.
func nextPercent(stored, current float64) (float64, bool) {
	if math.IsNaN(current) {
		return stored, false
	}
	current = math.Min(current, 100)
	current = math.Floor(current*10) / 10
	if current <= stored {
		return stored, false
	}
	return current, true
}
