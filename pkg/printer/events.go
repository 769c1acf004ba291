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
	"math"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/gcode"
)

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

func positionResponse(m gcode.Move) models.PositionResponse {
	return models.PositionResponse{
		X:        finite(m.Position.X),
		Y:        finite(m.Position.Y),
		Z:        finite(m.Position.Z),
		E:        finite(m.Extrusion),
		FeedRate: finite(m.FeedRate),
	}
}

func firmwareResponse(fw Firmware) models.FirmwareResponse {
	return models.FirmwareResponse{Name: fw.Name, Version: fw.Version}
}

// JobResponse converts a job for the API.
func JobResponse(j *PrintJob) models.JobResponse {
	r := models.JobResponse{
		Started:         j.Started,
		ID:              j.ID,
		FileName:        j.FileName,
		PercentComplete: j.PercentComplete,
		RecoveryCount:   j.RecoveryCount,
		Finished:        j.Finished,
		Canceled:        j.Canceled,
		SdCard:          j.SdCard,
	}
	if !j.Ended.IsZero() {
		ended := j.Ended
		r.Ended = &ended
	}
	return r
}
