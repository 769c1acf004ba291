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

// Package jobdb stores print jobs in sqlite.
package jobdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
	"github.com/printlink/printlink-core/pkg/config"
	"github.com/printlink/printlink-core/pkg/database"
	"github.com/printlink/printlink-core/pkg/printer"
)

var ErrNullSQL = errors.New("JobDB is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

const defaultHistoryLimit = 25

var _ database.JobDBI = (*JobDB)(nil)

type JobDB struct {
	sql     *sql.DB
	clock   clockwork.Clock
	dataDir string
}

// OpenJobDB opens or creates the job database in dataDir.
func OpenJobDB(ctx context.Context, dataDir string) (*JobDB, error) {
	db := &JobDB{dataDir: dataDir, clock: clockwork.NewRealClock()}
	err := db.Open(ctx)
	return db, err
}

func (db *JobDB) Open(ctx context.Context) error {
	dbPath := db.GetDBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for database: %w", err)
	}
	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlInstance.PingContext(ctx); err != nil {
		_ = sqlInstance.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	db.sql = sqlInstance
	return db.MigrateUp()
}

func (db *JobDB) GetDBPath() string {
	return filepath.Join(db.dataDir, config.JobsDbFile)
}

func (db *JobDB) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(db.sql)
}

func (db *JobDB) Vacuum(ctx context.Context) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlVacuum(ctx, db.sql)
}

func (db *JobDB) Truncate(ctx context.Context) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlTruncate(ctx, db.sql)
}

func (db *JobDB) Close() error {
	if db.sql == nil {
		return nil
	}
	if err := db.sql.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SetSQLForTesting swaps in sqlDB and clock and applies the schema.
func (db *JobDB) SetSQLForTesting(sqlDB *sql.DB, clock clockwork.Clock) error {
	db.sql = sqlDB
	db.clock = clock
	return db.MigrateUp()
}

func (db *JobDB) Save(ctx context.Context, job *printer.PrintJob) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlSaveJob(ctx, db.sql, job, db.clock.Now())
}

func (db *JobDB) UpdateProgress(ctx context.Context, id string, percent float64) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlUpdateProgress(ctx, db.sql, id, percent, db.clock.Now())
}

func (db *JobDB) History(ctx context.Context, limit int) ([]printer.PrintJob, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return sqlHistory(ctx, db.sql, limit)
}

func (db *JobDB) LatestResumable(ctx context.Context) (*printer.PrintJob, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlLatestResumable(ctx, db.sql)
}

func (db *JobDB) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if db.sql == nil {
		return 0, ErrNullSQL
	}
	return sqlCleanup(ctx, db.sql, db.clock.Now(), retentionDays)
}
