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

import "time"

type VersionResponse struct {
	Version  string `json:"version"`
	DeviceID string `json:"deviceId"`
}

// PositionResponse leaves unknown axes out.
type PositionResponse struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Z        *float64 `json:"z,omitempty"`
	E        *float64 `json:"e,omitempty"`
	FeedRate *float64 `json:"feedRate,omitempty"`
}

type HeaterResponse struct {
	Actual float64 `json:"actual"`
	Target float64 `json:"target"`
}

type FirmwareResponse struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type StatusResponse struct {
	Job              *JobResponse     `json:"job,omitempty"`
	Position         PositionResponse `json:"position"`
	Destination      PositionResponse `json:"destination"`
	Firmware         FirmwareResponse `json:"firmware"`
	State            string           `json:"state"`
	Detail           string           `json:"detail"`
	LastError        string           `json:"lastError,omitempty"`
	Hotends          []HeaterResponse `json:"hotends"`
	Bed              HeaterResponse   `json:"bed"`
	ActiveExtruder   int              `json:"activeExtruder"`
	Layer            int              `json:"layer"`
	PercentComplete  float64          `json:"percentComplete"`
	FanSpeed         float64          `json:"fanSpeed"`
	FeedRateRatio    float64          `json:"feedRateRatio"`
	ExtrusionRatio   float64          `json:"extrusionRatio"`
	BabyStepZ        float64          `json:"babyStepZ"`
	MalformedReplies int              `json:"malformedReplies"`
	LinesSent        int              `json:"linesSent"`
	Connected        bool             `json:"connected"`
	Printing         bool             `json:"printing"`
}

type JobResponse struct {
	Started         time.Time  `json:"started"`
	Ended           *time.Time `json:"ended,omitempty"`
	ID              string     `json:"id"`
	FileName        string     `json:"fileName"`
	PercentComplete float64    `json:"percentComplete"`
	RecoveryCount   int        `json:"recoveryCount"`
	Finished        bool       `json:"finished"`
	Canceled        bool       `json:"canceled"`
	SdCard          bool       `json:"sdCard"`
}

type JobsHistoryResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

type JobsExportResponse struct {
	CSV string `json:"csv"`
}

type PortResponse struct {
	Name         string `json:"name"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Product      string `json:"product,omitempty"`
	IsUSB        bool   `json:"isUsb"`
}

type PortsResponse struct {
	Ports []PortResponse `json:"ports"`
}

type BabystepResponse struct {
	Z float64 `json:"z"`
}

type SettingsResponse struct {
	Port           string  `json:"port"`
	ReadRegex      string  `json:"readRegex"`
	WriteRegex     string  `json:"writeRegex"`
	PauseLayers    []int   `json:"pauseLayers"`
	BaudRate       int     `json:"baudRate"`
	ExtruderCount  int     `json:"extruderCount"`
	FeedRateRatio  float64 `json:"feedRateRatio"`
	ExtrusionRatio float64 `json:"extrusionRatio"`
	Network        bool    `json:"network"`
	Checksums      bool    `json:"checksums"`
	DebugLogging   bool    `json:"debugLogging"`
	ErrorReporting bool    `json:"errorReporting"`
}

type LogDownloadResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Size     int    `json:"size"`
}

// Notification payloads.

type StateParams struct {
	State  string `json:"state"`
	Detail string `json:"detail,omitempty"`
}

type ConnectionFailedParams struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type LineParams struct {
	Line string `json:"line"`
}

type TemperatureParams struct {
	Heater string  `json:"heater"`
	Index  int     `json:"index"`
	Actual float64 `json:"actual"`
	Target float64 `json:"target"`
}

type ErrorParams struct {
	Message string `json:"message"`
	Line    string `json:"line,omitempty"`
}

type PrintParams struct {
	JobID    string  `json:"jobId,omitempty"`
	FileName string  `json:"fileName,omitempty"`
	Percent  float64 `json:"percent"`
	Seconds  float64 `json:"seconds"`
}

type PauseParams struct {
	Reason string `json:"reason"`
}

type ProgressParams struct {
	JobID   string  `json:"jobId,omitempty"`
	Percent float64 `json:"percent"`
	Layer   int     `json:"layer"`
}
