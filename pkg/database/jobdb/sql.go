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

package jobdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/printlink/printlink-core/pkg/database"
	"github.com/printlink/printlink-core/pkg/helpers"
	"github.com/printlink/printlink-core/pkg/printer"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const jobColumns = `ID, FileName, Path, Started, Ended, PercentComplete,
	RecoveryCount, Finished, Canceled, SdCard`

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run job database migrations: %w", err)
	}
	return nil
}

func sqlVacuum(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `vacuum;`); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

//goland:noinspection SqlWithoutWhere
func sqlTruncate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `delete from Jobs; vacuum;`); err != nil {
		return fmt.Errorf("failed to truncate database: %w", err)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0)
}

func closeStmt(stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close sql statement")
	}
}

func sqlSaveJob(ctx context.Context, db *sql.DB, job *printer.PrintJob, now time.Time) error {
	stmt, err := db.PrepareContext(ctx, `
		insert into Jobs(`+jobColumns+`, Updated)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict(ID) do update set
			FileName = excluded.FileName,
			Path = excluded.Path,
			Started = excluded.Started,
			Ended = excluded.Ended,
			PercentComplete = excluded.PercentComplete,
			RecoveryCount = excluded.RecoveryCount,
			Finished = excluded.Finished,
			Canceled = excluded.Canceled,
			SdCard = excluded.SdCard,
			Updated = excluded.Updated;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare job save statement: %w", err)
	}
	defer closeStmt(stmt)

	_, err = stmt.ExecContext(ctx,
		job.ID,
		job.FileName,
		job.Path,
		unixOrZero(job.Started),
		unixOrZero(job.Ended),
		job.PercentComplete,
		job.RecoveryCount,
		job.Finished,
		job.Canceled,
		job.SdCard,
		now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to execute job save: %w", err)
	}
	return nil
}

func sqlUpdateProgress(ctx context.Context, db *sql.DB, id string, percent float64, now time.Time) error {
	stmt, err := db.PrepareContext(ctx, `
		update Jobs set PercentComplete = ?, Updated = ?
		where ID = ? and PercentComplete < ?;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare job progress statement: %w", err)
	}
	defer closeStmt(stmt)

	if _, err := stmt.ExecContext(ctx, percent, now.Unix(), id, percent); err != nil {
		return fmt.Errorf("failed to execute job progress update: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (printer.PrintJob, error) {
	var job printer.PrintJob
	var started, ended int64
	err := row.Scan(
		&job.ID,
		&job.FileName,
		&job.Path,
		&started,
		&ended,
		&job.PercentComplete,
		&job.RecoveryCount,
		&job.Finished,
		&job.Canceled,
		&job.SdCard,
	)
	if err != nil {
		return job, err //nolint:wrapcheck // wrapped by callers
	}
	job.Started = timeOrZero(started)
	job.Ended = timeOrZero(ended)
	return job, nil
}

func sqlHistory(ctx context.Context, db *sql.DB, limit int) ([]printer.PrintJob, error) {
	list := make([]printer.PrintJob, 0, limit)

	q, err := db.PrepareContext(ctx, `
		select `+jobColumns+`
		from Jobs
		order by Started desc, rowid desc
		limit ?;
	`)
	if err != nil {
		return list, fmt.Errorf("failed to prepare job history statement: %w", err)
	}
	defer closeStmt(q)

	rows, err := q.QueryContext(ctx, limit)
	if err != nil {
		return list, fmt.Errorf("failed to query job history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql rows")
		}
	}()
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return list, fmt.Errorf("failed to scan job row: %w", scanErr)
		}
		list = append(list, job)
	}
	if err := rows.Err(); err != nil {
		return list, fmt.Errorf("error iterating job rows: %w", err)
	}
	return list, nil
}

func sqlLatestResumable(ctx context.Context, db *sql.DB) (*printer.PrintJob, error) {
	q, err := db.PrepareContext(ctx, `
		select `+jobColumns+`
		from Jobs
		where PercentComplete > 0 and Finished = 0 and Canceled = 0 and SdCard = 0
		order by Updated desc, Started desc
		limit 1;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare resumable job statement: %w", err)
	}
	defer closeStmt(q)

	job, err := scanJob(q.QueryRowContext(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no resumable job
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan resumable job: %w", err)
	}
	return &job, nil
}

func sqlCleanup(ctx context.Context, db *sql.DB, now time.Time, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	// a board without an rtc boots near the epoch
	if !helpers.IsClockReliable(now) {
		log.Warn().Time("now", now).Msg("clock looks unset, skipping job cleanup")
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays).Unix()

	stmt, err := db.PrepareContext(ctx, `delete from Jobs where Ended > 0 and Ended < ?;`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare job cleanup statement: %w", err)
	}
	defer closeStmt(stmt)

	result, err := stmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to execute job cleanup: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		if err := sqlVacuum(ctx, db); err != nil {
			return n, fmt.Errorf("cleanup succeeded but vacuum failed: %w", err)
		}
	}
	return n, nil
}
