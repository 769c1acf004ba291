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

package models

import (
	"encoding/json"
)

const (
	MethodPrinterConnect    = "printer.connect"
	MethodPrinterDisconnect = "printer.disconnect"
	MethodPrinterStatus     = "printer.status"
	MethodPrinterQueue      = "printer.queue"
	MethodPrinterHome       = "printer.home"
	MethodPrinterMove       = "printer.move"
	MethodPrinterHotend     = "printer.temperature.hotend"
	MethodPrinterBed        = "printer.temperature.bed"
	MethodPrinterPosition   = "printer.position"
	MethodPrinterMotorsOff  = "printer.motors.release"
	MethodPrinterReboot     = "printer.reboot"
	MethodPrinterPorts      = "printer.ports"
	MethodPrinterBabystep   = "printer.babystep"
	MethodPrinterRatios     = "printer.ratios"
	MethodPrintStart        = "print.start"
	MethodPrintSdStart      = "print.sd.start"
	MethodPrintStop         = "print.stop"
	MethodPrintPause        = "print.pause"
	MethodPrintResume       = "print.resume"
	MethodSdDelete          = "sd.delete"
	MethodJobsHistory       = "jobs.history"
	MethodJobsExport        = "jobs.export"
	MethodSettings          = "settings"
	MethodSettingsReload    = "settings.reload"
	MethodSettingsUpdate    = "settings.update"
	MethodSettingsLogs      = "settings.logs.download"
	MethodVersion           = "version"
)

const (
	NotificationPrinterState     = "printer.state"
	NotificationConnectionFailed = "printer.connectionFailed"
	NotificationLineSent         = "printer.lineSent"
	NotificationLineReceived     = "printer.lineReceived"
	NotificationTemperature      = "printer.temperature"
	NotificationDestination      = "printer.destination"
	NotificationFirmware         = "printer.firmware"
	NotificationPrinterError     = "printer.error"
	NotificationPrintFinished    = "print.finished"
	NotificationPrintCanceled    = "print.canceled"
	NotificationPauseRequested   = "print.pauseRequested"
	NotificationPrintProgress    = "print.progress"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RPCID           `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ResponseObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ResponseErrorObject exists for sending errors, so we can omit result from
// the response, but so nil responses are still returned when using the main
// ResponseObject.
type ResponseErrorObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
	Error   *ErrorObject `json:"error"`
}

type NotificationObject struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}
