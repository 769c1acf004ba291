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

	"github.com/hbollon/go-edlib"
	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/api/models/requests"
	"github.com/printlink/printlink-core/pkg/api/validation"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/printlink/printlink-core/pkg/printer"
	"github.com/rs/zerolog/log"
)

const portSimilarity = 0.6

// HandlePrinterConnect connects with the configured port, optionally
// switching port or baud rate first. The switch is saved to the config.
//
//nolint:gocritic // single-use parameter in API handler
func HandlePrinterConnect(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received printer connect request")

	var params models.ConnectParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, err
	}

	if params.Port != nil {
		warnUnknownPort(env, *params.Port)
	}

	if params.Port != nil || params.BaudRate != nil {
		p := env.Config.Printer()
		setIf(&p.Port, params.Port)
		setIf(&p.BaudRate, params.BaudRate)
		if err := env.Printer.UpdateSettings(p); err != nil {
			return nil, fmt.Errorf("printer rejected settings: %w", err)
		}
		env.Config.SetPrinterPort(p.Port, p.BaudRate)
		if err := env.Config.Save(); err != nil {
			log.Warn().Err(err).Msg("error saving printer port")
		}
	}

	return nil, env.Printer.Connect()
}

// closestPort returns the listed port most similar to port, or "" when port
// is listed or nothing is close.
func closestPort(port string, ports []helpers.SerialPort) string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.Name == port {
			return ""
		}
		names = append(names, p.Name)
	}
	if port == "" || len(names) == 0 {
		return ""
	}
	match, err := edlib.FuzzySearchThreshold(port, names, portSimilarity, edlib.Levenshtein)
	if err != nil {
		return ""
	}
	return match
}

//nolint:gocritic // single-use parameter in API handler
func warnUnknownPort(env requests.RequestEnv, port string) {
	if env.Ports == nil {
		return
	}
	ports, err := env.Ports()
	if err != nil {
		return
	}
	if match := closestPort(port, ports); match != "" {
		log.Warn().Str("port", port).Str("closest", match).Msg("port not found, did you mean the closest match?")
	}
}

//nolint:gocritic // single-use parameter in API handler
func HandlePrinterDisconnect(env requests.RequestEnv) (any, error) {
	log.Info().Msg("received printer disconnect request")
	return nil, env.Printer.Disable()
}

func HandlePrinterStatus(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	return env.Printer.Status(), nil
}

func HandlePrinterQueue(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.QueueParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	log.Debug().Str("line", params.Line).Bool("forceTop", params.ForceTop).Msg("queueing line")
	return nil, env.Printer.QueueLine(params.Line, params.ForceTop)
}

func HandlePrinterHome(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.HomeParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, err
	}
	axes, err := printer.ParseAxes(params.Axes)
	if err != nil {
		return nil, fmt.Errorf("invalid axes: %w", err)
	}
	return nil, env.Printer.HomeAxis(axes)
}

var errNoAxisGiven = errors.New("at least one of x, y, z or e is required")

func HandlePrinterMove(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.MoveParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	if params.X == nil && params.Y == nil && params.Z == nil && params.E == nil {
		return nil, errNoAxisGiven
	}

	target := printer.MoveTarget{
		X:        params.X,
		Y:        params.Y,
		Z:        params.Z,
		E:        params.E,
		FeedRate: params.FeedRate,
	}
	if params.Relative {
		return nil, env.Printer.MoveRelative(target)
	}
	return nil, env.Printer.MoveAbsolute(target)
}

//nolint:gocritic // single-use parameter in API handler
func HandlePrinterHotend(env requests.RequestEnv) (any, error) {
	var params models.HotendTemperatureParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	return nil, env.Printer.SetTargetHotend(params.Extruder, params.Temperature)
}

func HandlePrinterBed(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.BedTemperatureParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	return nil, env.Printer.SetTargetBed(params.Temperature)
}

// HandlePrinterPosition asks the firmware for its position. The answer
// arrives as a destination notification.
//
//nolint:gocritic // single-use parameter in API handler
func HandlePrinterPosition(env requests.RequestEnv) (any, error) {
	return nil, env.Printer.ReadPosition()
}

//nolint:gocritic // single-use parameter in API handler
func HandlePrinterMotorsOff(env requests.RequestEnv) (any, error) {
	return nil, env.Printer.ReleaseMotors()
}

func HandlePrinterReboot(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received printer reboot request")
	return nil, env.Printer.RebootBoard()
}

func HandlePrinterPorts(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	ports, err := env.Ports()
	if err != nil {
		return nil, fmt.Errorf("error listing serial ports: %w", err)
	}
	resp := models.PortsResponse{Ports: make([]models.PortResponse, 0, len(ports))}
	for _, p := range ports {
		resp.Ports = append(resp.Ports, models.PortResponse{
			Name:         p.Name,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
			IsUSB:        p.IsUSB,
		})
	}
	return resp, nil
}

// HandlePrinterBabystep shifts Z and keeps the new offset in the config so
// it survives a restart.
//
//nolint:gocritic // single-use parameter in API handler
func HandlePrinterBabystep(env requests.RequestEnv) (any, error) {
	var params models.BabystepParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	z, err := env.Printer.Babystep(params.Z)
	if err != nil {
		return nil, err //nolint:wrapcheck // printer errors are already descriptive
	}
	env.Config.SetBabyStepZOffset(z)
	if err := env.Config.Save(); err != nil {
		log.Warn().Err(err).Msg("error saving babystep offset")
	}
	return models.BabystepResponse{Z: z}, nil
}

func HandlePrinterRatios(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	var params models.RatiosParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, err
	}
	return nil, env.Printer.SetRatios(params.FeedRate, params.Extrusion)
}
