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

package helpers

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/printlink/printlink-core/pkg/database/jobdb"
)

// NewInMemoryJobDB opens a migrated job store in a temp file. It is closed
// when the test ends.
func NewInMemoryJobDB(t *testing.T, clock clockwork.Clock) *jobdb.JobDB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "jobdb_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	db := &jobdb.JobDB{}
	if err := db.SetSQLForTesting(sqlDB, clock); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			t.Errorf("Failed to close SQL database after setup error: %v", closeErr)
		}
		t.Fatalf("Failed to set up JobDB for testing: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close JobDB: %v", err)
		}
	})
	return db
}
