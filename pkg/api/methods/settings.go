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
	"slices"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

func settingsResponse(cfg *config.Instance) models.SettingsResponse {
	p := cfg.Printer()
	resp := models.SettingsResponse{
		Port:           p.Port,
		BaudRate:       p.BaudRate,
		ExtruderCount:  p.ExtruderCount,
		FeedRateRatio:  p.FeedRateRatio,
		ExtrusionRatio: p.ExtrusionRatio,
		ReadRegex:      p.ReadRegex,
		WriteRegex:     p.WriteRegex,
		PauseLayers:    make([]int, 0, len(p.PauseLayers)),
		Network:        p.Network,
		Checksums:      p.Checksums,
		DebugLogging:   cfg.DebugLogging(),
		ErrorReporting: cfg.ErrorReporting(),
	}
	resp.PauseLayers = append(resp.PauseLayers, p.PauseLayers...)
	return resp
}

func HandleSettings(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received settings request")
	return settingsResponse(env.Config), nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// HandleSettingsUpdate applies the given fields, saves the config and hands
// the new printer section to the connection.
//
//nolint:gocritic // single-use parameter in API handler
func HandleSettingsUpdate(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings update request")

	var params models.UpdateSettingsParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}

	p := env.Config.Printer()
	setIf(&p.Port, params.Port)
	setIf(&p.BaudRate, params.BaudRate)
	setIf(&p.ExtruderCount, params.ExtruderCount)
	setIf(&p.FeedRateRatio, params.FeedRateRatio)
	setIf(&p.ExtrusionRatio, params.ExtrusionRatio)
	setIf(&p.ReadRegex, params.ReadRegex)
	setIf(&p.WriteRegex, params.WriteRegex)
	setIf(&p.Network, params.Network)
	setIf(&p.Checksums, params.Checksums)
	if params.PauseLayers != nil {
		p.PauseLayers = slices.Clone(*params.PauseLayers)
	}

	if err := env.Printer.UpdateSettings(p); err != nil {
		return nil, fmt.Errorf("printer rejected settings: %w", err)
	}
	if err := env.Config.SetPrinter(p); err != nil {
		return nil, fmt.Errorf("invalid printer settings: %w", err)
	}
	if params.DebugLogging != nil {
		env.Config.SetDebugLogging(*params.DebugLogging)
	}
	if params.ErrorReporting != nil {
		env.Config.SetErrorReporting(*params.ErrorReporting)
	}

	if err := env.Config.Save(); err != nil {
		log.Error().Err(err).Msg("error saving settings")
		return nil, errors.New("error saving settings")
	}
	return settingsResponse(env.Config), nil
}

//nolint:gocritic // single-use parameter in API handler
func HandleSettingsReload(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received settings reload request")

	if err := env.Config.Load(); err != nil {
		log.Error().Err(err).Msg("error loading settings")
		return nil, errors.New("error loading settings")
	}
	if err := env.Printer.UpdateSettings(env.Config.Printer()); err != nil {
		return nil, fmt.Errorf("printer rejected settings: %w", err)
	}
	return nil, nil
}
