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

package requests

import (
	"context"
	"encoding/json"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/database"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/printlink/printlink-core/pkg/printer"
)

// Printer is the part of *printer.Connection the API drives.
type Printer interface {
	Connect() error
	Disable() error
	Status() models.StatusResponse
	Job() *printer.PrintJob
	UpdateSettings(settings config.Printer) error
	QueueLine(line string, forceTop bool) error
	HomeAxis(axes printer.Axis) error
	MoveAbsolute(t printer.MoveTarget) error
	MoveRelative(t printer.MoveTarget) error
	SetTargetHotend(extruder int, celsius float64) error
	SetTargetBed(celsius float64) error
	ReadPosition() error
	ReleaseMotors() error
	RebootBoard() error
	Babystep(dz float64) (float64, error)
	SetRatios(feedRate, extrusion *float64) error
	StartPrintFile(ctx context.Context, path string, previous *printer.PrintJob) error
	StartSdCardPrint(file string) error
	DeleteFileFromSdCard(file string) error
	Stop(markCanceled bool) error
	RequestPause() error
	Resume() error
}

var _ Printer = (*printer.Connection)(nil)

type RequestEnv struct {
	Context context.Context
	Printer Printer
	Config  *config.Instance
	Jobs    database.JobDBI
	Ports   func() ([]helpers.SerialPort, error)
	LogDir  string
	ID      models.RPCID
	Params  json.RawMessage
	IsLocal bool
}
