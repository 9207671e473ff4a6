// Package runhistory records one row per schedule run into a local SQLite
// database, independent of the Postgres production database the run itself
// reads and writes. It gives operators an audit trail that survives even
// when a run fails before it can write anything back to Postgres.
package runhistory

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"printflow-scheduler/internal/notify"
	"printflow-scheduler/internal/platform/sqlite"
)

// Store appends run completion records to a local SQLite database.
type Store struct {
	tx *sqlite.TxRunner
}

// ApplyMigrations brings the run-history database at path up to date with
// the SQLite migrations at migrationsPath (e.g. "file://migrations/sqlite").
func ApplyMigrations(path, migrationsPath string) error {
	return sqlite.ApplyMigrations(path, migrationsPath)
}

// Open opens (creating if necessary) the SQLite database at path and
// returns a Store backed by it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.NewDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Store{tx: sqlite.NewTxRunner(db)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.tx.Close()
}

// Record inserts one row describing a completed schedule run.
func (s *Store) Record(ctx context.Context, event notify.RunCompletion, source string, nuclear bool) error {
	return s.tx.WithinTxWrite(ctx, func(ctx context.Context) error {
		q := s.tx.GetQuerier(ctx)
		_, err := q.ExecContext(ctx, `
			INSERT INTO run_log (
				run_id, completed_at, division, source, nuclear,
				applied, skipped, failures, warnings
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			event.RunID.String(), event.CompletedAt.UTC().Format(time.RFC3339Nano),
			event.Division, source, nuclear,
			event.Applied, event.Skipped, event.Failures, event.Warnings,
		)
		return err
	})
}

// Entry is one row of run history, as returned by Recent.
type Entry struct {
	RunID       uuid.UUID
	CompletedAt time.Time
	Division    string
	Source      string
	Nuclear     bool
	Applied     int
	Skipped     int
	Failures    int
	Warnings    int
}

// Recent returns the most recent limit run-history entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := s.tx.WithinTxRead(ctx, func(ctx context.Context) error {
		q := s.tx.GetQuerier(ctx)
		rows, err := q.QueryContext(ctx, `
			SELECT run_id, completed_at, division, source, nuclear, applied, skipped, failures, warnings
			FROM run_log ORDER BY completed_at DESC LIMIT ?
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e            Entry
				runID        string
				completedAt  string
				division     sql.NullString
			)
			if err := rows.Scan(&runID, &completedAt, &division, &e.Source, &e.Nuclear, &e.Applied, &e.Skipped, &e.Failures, &e.Warnings); err != nil {
				return err
			}
			e.RunID, err = uuid.Parse(runID)
			if err != nil {
				return err
			}
			e.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt)
			if err != nil {
				return err
			}
			e.Division = division.String
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}
