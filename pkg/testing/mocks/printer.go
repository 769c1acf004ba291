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

package mocks

import (
	"context"
	"fmt"

	"github.com/printlink/printlink-core/pkg/api/models"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/printer"
	"github.com/stretchr/testify/mock"
)

// MockPrinter is a testify mock of the printer connection as the API sees it.
type MockPrinter struct {
	mock.Mock
}

func NewMockPrinter() *MockPrinter {
	return &MockPrinter{}
}

func (m *MockPrinter) err(args mock.Arguments, i int) error {
	if err := args.Error(i); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockPrinter) Connect() error {
	return m.err(m.Called(), 0)
}

func (m *MockPrinter) Disable() error {
	return m.err(m.Called(), 0)
}

func (m *MockPrinter) Status() models.StatusResponse {
	args := m.Called()
	if s, ok := args.Get(0).(models.StatusResponse); ok {
		return s
	}
	return models.StatusResponse{}
}

func (m *MockPrinter) Job() *printer.PrintJob {
	args := m.Called()
	if j, ok := args.Get(0).(*printer.PrintJob); ok {
		return j
	}
	return nil
}

//nolint:gocritic // matches the interface
func (m *MockPrinter) UpdateSettings(settings config.Printer) error {
	return m.err(m.Called(settings), 0)
}

func (m *MockPrinter) QueueLine(line string, forceTop bool) error {
	return m.err(m.Called(line, forceTop), 0)
}

func (m *MockPrinter) HomeAxis(axes printer.Axis) error {
	return m.err(m.Called(axes), 0)
}

func (m *MockPrinter) MoveAbsolute(t printer.MoveTarget) error {
	return m.err(m.Called(t), 0)
}

func (m *MockPrinter) MoveRelative(t printer.MoveTarget) error {
	return m.err(m.Called(t), 0)
}

func (m *MockPrinter) SetTargetHotend(extruder int, celsius float64) error {
	return m.err(m.Called(extruder, celsius), 0)
}

func (m *MockPrinter) SetTargetBed(celsius float64) error {
	return m.err(m.Called(celsius), 0)
}

func (m *MockPrinter) ReadPosition() error {
	return m.err(m.Called(), 0)
}

func (m *MockPrinter) ReleaseMotors() error {
	return m.err(m.Called(), 0)
}

func (m *MockPrinter) RebootBoard() error {
	return m.err(m.Called(), 0)
}

func (m *MockPrinter) Babystep(dz float64) (float64, error) {
	args := m.Called(dz)
	return args.Get(0).(float64), m.err(args, 1) //nolint:forcetypeassert // set by the test
}

func (m *MockPrinter) SetRatios(feedRate, extrusion *float64) error {
	return m.err(m.Called(feedRate, extrusion), 0)
}

func (m *MockPrinter) StartPrintFile(ctx context.Context, path string, previous *printer.PrintJob) error {
	return m.err(m.Called(ctx, path, previous), 0)
}

func (m *MockPrinter) StartSdCardPrint(file string) error {
	return m.err(m.Called(file), 0)
}

func (m *MockPrinter) DeleteFileFromSdCard(file string) error {
	return m.err(m.Called(file), 0)
}

func (m *MockPrinter) Stop(markCanceled bool) error {
	return m.err(m.Called(markCanceled), 0)
}

func (m *MockPrinter) RequestPause() error {
	return m.err(m.Called(), 0)
}

func (m *MockPrinter) Resume() error {
	return m.err(m.Called(), 0)
}
