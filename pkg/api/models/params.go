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

type ConnectParams struct {
	Port     *string `json:"port"`
	BaudRate *int    `json:"baudRate" validate:"omitempty,gt=0"`
}

type QueueParams struct {
	Line     string `json:"line" validate:"required,gcode"`
	ForceTop bool   `json:"forceTop"`
}

type HomeParams struct {
	Axes string `json:"axes" validate:"omitempty,axes"`
}

type MoveParams struct {
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	Z        *float64 `json:"z"`
	E        *float64 `json:"e"`
	FeedRate float64  `json:"feedRate" validate:"gte=0"`
	Relative bool     `json:"relative"`
}

type HotendTemperatureParams struct {
	Extruder    int     `json:"extruder" validate:"gte=0,lt=8"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=400"`
}

type BedTemperatureParams struct {
	Temperature float64 `json:"temperature" validate:"gte=0,lte=150"`
}

type BabystepParams struct {
	Z float64 `json:"z" validate:"gte=-1,lte=1"`
}

type RatiosParams struct {
	FeedRate  *float64 `json:"feedRate" validate:"omitempty,gt=0,lte=5"`
	Extrusion *float64 `json:"extrusion" validate:"omitempty,gt=0,lte=5"`
}

type PrintStartParams struct {
	Path   string `json:"path" validate:"required"`
	Resume bool   `json:"resume"`
}

type SdFileParams struct {
	File string `json:"file" validate:"required,sdfile"`
}

type PrintStopParams struct {
	MarkCanceled *bool `json:"markCanceled"`
}

type JobsHistoryParams struct {
	Limit int `json:"limit" validate:"gte=0,lte=500"`
}

type UpdateSettingsParams struct {
	Port           *string  `json:"port"`
	BaudRate       *int     `json:"baudRate" validate:"omitempty,gt=0"`
	ExtruderCount  *int     `json:"extruderCount" validate:"omitempty,gte=1,lte=8"`
	FeedRateRatio  *float64 `json:"feedRateRatio" validate:"omitempty,gt=0,lte=5"`
	ExtrusionRatio *float64 `json:"extrusionRatio" validate:"omitempty,gt=0,lte=5"`
	ReadRegex      *string  `json:"readRegex" validate:"omitempty,rewrite"`
	WriteRegex     *string  `json:"writeRegex" validate:"omitempty,rewrite"`
	PauseLayers    *[]int   `json:"pauseLayers" validate:"omitempty,dive,gte=1"`
	Network        *bool    `json:"network"`
	Checksums      *bool    `json:"checksums"`
	DebugLogging   *bool    `json:"debugLogging"`
	ErrorReporting *bool    `json:"errorReporting"`
}
