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

	"github.com/printlink/printlink-core/pkg/printer"
	"github.com/stretchr/testify/mock"
)

// MockJobDB is a testify mock of the print job store.
type MockJobDB struct {
	mock.Mock
}

func (m *MockJobDB) Save(ctx context.Context, job *printer.PrintJob) error {
	args := m.Called(ctx, job)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockJobDB) UpdateProgress(ctx context.Context, id string, percent float64) error {
	args := m.Called(ctx, id, percent)
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}

func (m *MockJobDB) History(ctx context.Context, limit int) ([]printer.PrintJob, error) {
	args := m.Called(ctx, limit)
	if err := args.Error(1); err != nil {
		return nil, fmt.Errorf("mock operation failed: %w", err)
	}
	if jobs, ok := args.Get(0).([]printer.PrintJob); ok {
		return jobs, nil
	}
	return nil, nil
}

func (m *MockJobDB) LatestResumable(ctx context.Context) (*printer.PrintJob, error) {
	args := m.Called(ctx)
	if err := args.Error(1); err != nil {
		return nil, fmt.Errorf("mock operation failed: %w", err)
	}
	if job, ok := args.Get(0).(*printer.PrintJob); ok {
		return job, nil
	}
	return nil, nil //nolint:nilnil // mirrors the real store
}

func (m *MockJobDB) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	if err := args.Error(1); err != nil {
		return 0, fmt.Errorf("mock operation failed: %w", err)
	}
	return args.Get(0).(int64), nil //nolint:forcetypeassert // set by the test
}

func (m *MockJobDB) Close() error {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return fmt.Errorf("mock operation failed: %w", err)
	}
	return nil
}
