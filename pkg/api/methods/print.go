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
	"errors"
	"fmt"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/printer"
	"github.com/rs/zerolog/log"
)

var ErrNothingToResume = errors.New("no resumable job for this file")

// HandlePrintStart starts a file print. With resume set, the most recent
// resumable job must be for the same path and the print continues from its
// stored progress.
//
//nolint:gocritic // single-use parameter in API handler
func HandlePrintStart(env requests.RequestEnv) (any, error) {
	var params models.PrintStartParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	log.Info().Str("path", params.Path).Bool("resume", params.Resume).Msg("received print start request")

	var previous *printer.PrintJob
	if params.Resume {
		job, err := env.Jobs.LatestResumable(env.Context)
		if err != nil {
			return nil, fmt.Errorf("error looking up resumable job: %w", err)
		}
		if job == nil || job.Path != params.Path {
			return nil, ErrNothingToResume
		}
		previous = job
	}

	if err := env.Printer.StartPrintFile(env.Context, params.Path, previous); err != nil {
		return nil, err //nolint:wrapcheck // printer errors are already descriptive
	}
	if job := env.Printer.Job(); job != nil {
		return printer.JobResponse(job), nil
	}
	return nil, nil
}

//nolint:gocritic // single-use parameter in API handler
func HandlePrintSdStart(env requests.RequestEnv) (any, error) {
	var params models.SdFileParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	log.Info().Str("file", params.File).Msg("received sd print request")
	return nil, env.Printer.StartSdCardPrint(params.File)
}

// HandlePrintStop cancels the print. Jobs are marked canceled unless the
// client asks otherwise, which keeps them resumable.
//
//nolint:gocritic // single-use parameter in API handler
func HandlePrintStop(env requests.RequestEnv) (any, error) {
	var params models.PrintStopParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, err
	}
	markCanceled := params.MarkCanceled == nil || *params.MarkCanceled
	log.Info().Bool("markCanceled", markCanceled).Msg("received print stop request")
	return nil, env.Printer.Stop(markCanceled)
}

func HandlePrintPause(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received print pause request")
	return nil, env.Printer.RequestPause()
}

//nolint:gocritic // single-use parameter in API handler
func HandlePrintResume(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received print resume request")
	return nil, env.Printer.Resume()
}

func HandleSdDelete(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.SdFileParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	return nil, env.Printer.DeleteFileFromSdCard(params.File)
}
