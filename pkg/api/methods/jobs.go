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

package methods

import (
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/printer"
)

func HandleJobsHistory(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.JobsHistoryParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, err
	}

	jobs, err := env.Jobs.History(env.Context, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("error reading job history: %w", err)
	}
	resp := models.JobsHistoryResponse{Jobs: make([]models.JobResponse, 0, len(jobs))}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, printer.JobResponse(&jobs[i]))
	}
	return resp, nil
}

type jobRow struct {
	ID              string  `csv:"id"`
	FileName        string  `csv:"file_name"`
	Path            string  `csv:"path"`
	Started         string  `csv:"started"`
	Ended           string  `csv:"ended"`
	PercentComplete float64 `csv:"percent_complete"`
	RecoveryCount   int     `csv:"recovery_count"`
	Finished        bool    `csv:"finished"`
	Canceled        bool    `csv:"canceled"`
	SdCard          bool    `csv:"sd_card"`
}

// HandleJobsExport returns the job history as CSV, oldest first so it reads
// like a log.
//
//nolint:gocritic // single-use parameter in API handler
func HandleJobsExport(env requests.RequestEnv) (any, error) {
	var params models.JobsHistoryParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, err
	}

	jobs, err := env.Jobs.History(env.Context, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("error reading job history: %w", err)
	}

	rows := make([]jobRow, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		j := &jobs[i]
		row := jobRow{
			ID:              j.ID,
			FileName:        j.FileName,
			Path:            j.Path,
			Started:         j.Started.UTC().Format(time.RFC3339),
			PercentComplete: j.PercentComplete,
			RecoveryCount:   j.RecoveryCount,
			Finished:        j.Finished,
			Canceled:        j.Canceled,
			SdCard:          j.SdCard,
		}
		if !j.Ended.IsZero() {
			row.Ended = j.Ended.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, fmt.Errorf("error encoding job history: %w", err)
	}
	return models.JobsExportResponse{CSV: out}, nil
}
