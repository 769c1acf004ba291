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

// Package notifications builds the JSON-RPC notifications broadcast to API
// clients and publishers. Every send is non-blocking: the printer sends while
// holding its connection lock, and a slow consumer must never stall the
// serial loops.
package notifications

import (
	"encoding/json"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

func sendNotification(ns chan<- models.Notification, method string, payload any) {
	if ns == nil {
		return
	}

	var params json.RawMessage
	if payload != nil {
		var err error
		params, err = json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Msgf("error marshalling %s notification", method)
			return
		}
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Msgf("notification channel full, dropping %s", method)
	}
}

func PrinterState(ns chan<- models.Notification, payload models.StateParams) {
	sendNotification(ns, models.NotificationPrinterState, payload)
}

func ConnectionFailed(ns chan<- models.Notification, payload models.ConnectionFailedParams) {
	sendNotification(ns, models.NotificationConnectionFailed, payload)
}

func LineSent(ns chan<- models.Notification, line string) {
	sendNotification(ns, models.NotificationLineSent, models.LineParams{Line: line})
}

func LineReceived(ns chan<- models.Notification, line string) {
	sendNotification(ns, models.NotificationLineReceived, models.LineParams{Line: line})
}

func Temperature(ns chan<- models.Notification, payload models.TemperatureParams) {
	sendNotification(ns, models.NotificationTemperature, payload)
}

func Destination(ns chan<- models.Notification, payload models.PositionResponse) {
	sendNotification(ns, models.NotificationDestination, payload)
}

func Firmware(ns chan<- models.Notification, payload models.FirmwareResponse) {
	sendNotification(ns, models.NotificationFirmware, payload)
}

func PrinterError(ns chan<- models.Notification, payload models.ErrorParams) {
	sendNotification(ns, models.NotificationPrinterError, payload)
}

func PrintFinished(ns chan<- models.Notification, payload models.PrintParams) {
	sendNotification(ns, models.NotificationPrintFinished, payload)
}

func PrintCanceled(ns chan<- models.Notification, payload models.PrintParams) {
	sendNotification(ns, models.NotificationPrintCanceled, payload)
}

func PauseRequested(ns chan<- models.Notification, reason string) {
	sendNotification(ns, models.NotificationPauseRequested, models.PauseParams{Reason: reason})
}

func PrintProgress(ns chan<- models.Notification, payload models.ProgressParams) {
	sendNotification(ns, models.NotificationPrintProgress, payload)
}
