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

package database

import (
	"context"

	"github.com/printlink/printlink-core/pkg/printer"
)

// JobDBI is the print job store the service runs against. It extends the
// repository the connection writes to with the queries used by the API
// and by print recovery.
type JobDBI interface {
	printer.JobRepository
	// History returns up to limit jobs, newest first.
	History(ctx context.Context, limit int) ([]printer.PrintJob, error)
	// LatestResumable returns the most recent job that a recovery could
	// continue, or nil when there is none.
	LatestResumable(ctx context.Context) (*printer.PrintJob, error)
	// Cleanup removes jobs that ended before the retention window.
	Cleanup(ctx context.Context, retentionDays int) (int64, error)
	Close() error
}
