// Package applier persists a planner Result against the job_stage_instances
// table, in commit or dry-run mode, honoring onlyIfUnset and asProposed
// write semantics, and performs the nuclear wipe that precedes a nuclear
// rebuild. Apply's writes for one run happen inside a single transaction;
// Wipe runs in a transaction of its own.
package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"printflow-scheduler/internal/domain"
	"printflow-scheduler/internal/platform/pg"
	"printflow-scheduler/internal/shared"
)

// Mode controls how Apply writes a planning run's updates.
type Mode struct {
	// Commit writes the updates inside a transaction. When false, Apply
	// computes exactly what it would do and returns it without writing
	// anything (dry-run).
	Commit bool

	// OnlyIfUnset restricts writes to stages whose scheduled_start_at is
	// currently null, so an already-scheduled (or manually pinned) stage is
	// left untouched.
	OnlyIfUnset bool

	// AsProposed marks written rows schedule_status='proposed' instead of
	// 'scheduled', so a human can review a run's effect before accepting it
	// without the row being treated as a committed schedule.
	AsProposed bool
}

// FailedWrite records one placement update that could not be persisted.
type FailedWrite struct {
	StageID uuid.UUID
	Err     error
}

// ApplyOutcome summarizes what Apply did.
type ApplyOutcome struct {
	Applied int
	Skipped int
	Failed  []FailedWrite
}

// Applier persists planner output.
type Applier struct {
	tx *pg.TxRunner
}

// New wires an Applier against a transaction runner.
func New(tx *pg.TxRunner) *Applier {
	return &Applier{tx: tx}
}

// Apply writes updates per mode. On Commit with any write failures, the
// transaction still commits whichever writes succeeded (fail-open, partial
// success) and the failures are reported back to the caller, per spec §7's
// WriteFailed handling.
func (a *Applier) Apply(ctx context.Context, updates []domain.PlacementUpdate, mode Mode) (ApplyOutcome, error) {
	if !mode.Commit {
		return a.dryRun(ctx, updates, mode)
	}

	var outcome ApplyOutcome
	err := a.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := a.tx.GetQuerier(ctx)
		for _, u := range updates {
			// Each row runs under its own savepoint so that one failed UPDATE
			// does not abort the surrounding transaction.
			if _, err := q.Exec(ctx, `SAVEPOINT apply_row`); err != nil {
				return err
			}
			applied, err := writeOne(ctx, q, u, mode)
			if err != nil {
				if _, rbErr := q.Exec(ctx, `ROLLBACK TO SAVEPOINT apply_row`); rbErr != nil {
					return rbErr
				}
				outcome.Failed = append(outcome.Failed, FailedWrite{StageID: u.StageID, Err: err})
				continue
			}
			if _, err := q.Exec(ctx, `RELEASE SAVEPOINT apply_row`); err != nil {
				return err
			}
			if applied {
				outcome.Applied++
			} else {
				outcome.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return ApplyOutcome{}, shared.MarkKind(fmt.Errorf("%w: %w", shared.ErrWriteFailed, err), shared.KindDependencyFailure)
	}
	return outcome, nil
}

// dryRun reports what Apply would do, without writing, by checking each
// stage's current scheduled_start_at against OnlyIfUnset.
func (a *Applier) dryRun(ctx context.Context, updates []domain.PlacementUpdate, mode Mode) (ApplyOutcome, error) {
	var outcome ApplyOutcome
	q := a.tx.GetQuerier(ctx)
	for _, u := range updates {
		if !mode.OnlyIfUnset {
			outcome.Applied++
			continue
		}
		var set bool
		err := q.QueryRow(ctx, `SELECT scheduled_start_at IS NOT NULL FROM job_stage_instances WHERE id = $1`, u.StageID).Scan(&set)
		if err != nil {
			outcome.Failed = append(outcome.Failed, FailedWrite{StageID: u.StageID, Err: err})
			continue
		}
		if set {
			outcome.Skipped++
		} else {
			outcome.Applied++
		}
	}
	return outcome, nil
}

func writeOne(ctx context.Context, q pg.Querier, u domain.PlacementUpdate, mode Mode) (applied bool, err error) {
	status := "scheduled"
	if mode.AsProposed {
		status = "proposed"
	}

	where := "id = $4"
	if mode.OnlyIfUnset {
		where = "id = $4 AND scheduled_start_at IS NULL"
	}
	tag, err := q.Exec(ctx, fmt.Sprintf(`
		UPDATE job_stage_instances
		SET scheduled_start_at = $1, scheduled_end_at = $2, scheduled_minutes = $3, schedule_status = $5
		WHERE %s`, where), u.Start, u.End, u.Minutes, u.StageID, status)
	if err != nil {
		return false, fmt.Errorf("update scheduled stage %s: %w", u.StageID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// WipeScope controls how much of the existing schedule Wipe clears.
type WipeScope struct {
	// WipeAll clears the schedule of every stage whose schedule_status is
	// not 'active', regardless of start time. When false, only those stages
	// whose scheduled_start_at is at or after BaseStart are cleared, leaving
	// history before BaseStart untouched.
	WipeAll   bool
	BaseStart time.Time
}

// Wipe clears existing schedule columns ahead of a nuclear-mode run. It
// runs in its own transaction and never leaves a partial wipe: any failure
// aborts the whole wipe.
func Wipe(ctx context.Context, tx *pg.TxRunner, scope WipeScope) error {
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		q := tx.GetQuerier(ctx)
		var err error
		if scope.WipeAll {
			_, err = q.Exec(ctx, `
				UPDATE job_stage_instances
				SET scheduled_start_at = NULL, scheduled_end_at = NULL, scheduled_minutes = NULL, schedule_status = 'unscheduled'
				WHERE schedule_status != 'active'`)
		} else {
			_, err = q.Exec(ctx, `
				UPDATE job_stage_instances
				SET scheduled_start_at = NULL, scheduled_end_at = NULL, scheduled_minutes = NULL, schedule_status = 'unscheduled'
				WHERE schedule_status != 'active' AND scheduled_start_at >= $1`, scope.BaseStart)
		}
		return err
	})
	if err != nil {
		return shared.MarkKind(fmt.Errorf("%w: %w", shared.ErrNuclearWipeFailed, err), shared.KindDependencyFailure)
	}
	return nil
}
