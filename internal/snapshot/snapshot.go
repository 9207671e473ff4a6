// Package snapshot loads the single consistent view of shifts, breaks,
// holidays, routes, and jobs-with-stages that one planning run reads, all
// inside one transaction so the planner never sees a partially updated
// calendar or job set.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"printflow-scheduler/internal/domain"
	"printflow-scheduler/internal/platform/pg"
	"printflow-scheduler/internal/shared"
)

// Reader loads a domain.Snapshot from Postgres.
type Reader struct {
	tx *pg.TxRunner
}

// NewReader wires a Reader against a transaction runner.
func NewReader(tx *pg.TxRunner) *Reader {
	return &Reader{tx: tx}
}

// Load reads the whole snapshot inside one read-only transaction, per
// spec §4.1: the planner must never observe shifts, breaks, holidays,
// routes, or jobs from different points in time.
func (r *Reader) Load(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := r.tx.WithinTxWithOptions(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(ctx context.Context) error {
		q := r.tx.GetQuerier(ctx)

		var err error
		if snap.Shifts, err = loadShifts(ctx, q); err != nil {
			return err
		}
		if snap.Breaks, err = loadBreaks(ctx, q); err != nil {
			return err
		}
		if snap.Holidays, err = loadHolidays(ctx, q); err != nil {
			return err
		}
		if snap.Routes, err = loadRoutes(ctx, q); err != nil {
			return err
		}
		if snap.Jobs, err = loadJobsWithStages(ctx, q); err != nil {
			return err
		}
		snap.GeneratedAt = time.Now()
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, shared.MarkKind(fmt.Errorf("%w: %w", shared.ErrSnapshotUnavailable, err), shared.KindDependencyFailure)
	}
	return snap, nil
}

func loadShifts(ctx context.Context, q pg.Querier) ([]domain.Shift, error) {
	rows, err := q.Query(ctx, `SELECT weekday, start_time, end_time, is_working_day FROM production_shifts`)
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	defer rows.Close()

	var out []domain.Shift
	for rows.Next() {
		var weekday int
		var s domain.Shift
		if err := rows.Scan(&weekday, &s.StartTime, &s.EndTime, &s.IsWorkingDay); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		s.Weekday = time.Weekday(weekday)
		out = append(out, s)
	}
	return out, rows.Err()
}

func loadBreaks(ctx context.Context, q pg.Querier) ([]domain.Break, error) {
	rows, err := q.Query(ctx, `SELECT start_time, minutes FROM production_breaks`)
	if err != nil {
		return nil, fmt.Errorf("query breaks: %w", err)
	}
	defer rows.Close()

	var out []domain.Break
	for rows.Next() {
		var b domain.Break
		if err := rows.Scan(&b.StartTime, &b.Minutes); err != nil {
			return nil, fmt.Errorf("scan break: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func loadHolidays(ctx context.Context, q pg.Querier) ([]domain.Holiday, error) {
	rows, err := q.Query(ctx, `SELECT holiday_date, name FROM production_holidays`)
	if err != nil {
		return nil, fmt.Errorf("query holidays: %w", err)
	}
	defer rows.Close()

	var out []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.Date, &h.Name); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func loadRoutes(ctx context.Context, q pg.Querier) ([]domain.Route, error) {
	rows, err := q.Query(ctx, `SELECT category_id, production_stage_id, stage_order FROM stage_routes`)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var out []domain.Route
	for rows.Next() {
		var r domain.Route
		if err := rows.Scan(&r.CategoryID, &r.ProductionStageID, &r.StageOrder); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func loadJobsWithStages(ctx context.Context, q pg.Querier) ([]domain.JobWithStages, error) {
	jobRows, err := q.Query(ctx, `
		SELECT id, work_order_no, customer_name, total_quantity, due_date, proof_approved_at, division
		FROM production_jobs
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.JobWithStages)
	var order []uuid.UUID
	for jobRows.Next() {
		var j domain.Job
		if err := jobRows.Scan(&j.ID, &j.WorkOrderNo, &j.CustomerName, &j.TotalQuantity, &j.DueDate, &j.ProofApprovedAt, &j.Division); err != nil {
			jobRows.Close()
			return nil, fmt.Errorf("scan job: %w", err)
		}
		byID[j.ID] = &domain.JobWithStages{Job: j}
		order = append(order, j.ID)
	}
	jobErr := jobRows.Err()
	jobRows.Close()
	if jobErr != nil {
		return nil, jobErr
	}

	stageRows, err := q.Query(ctx, `
		SELECT id, job_id, production_stage_id, stage_name, stage_order, status,
		       estimated_minutes, setup_minutes, part_assignment, dependency_group,
		       scheduled_start_at, scheduled_end_at, scheduled_minutes, schedule_status
		FROM job_stage_instances
		ORDER BY job_id, id`)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer stageRows.Close()

	for stageRows.Next() {
		var s domain.StageInstance
		var part *string
		if err := stageRows.Scan(&s.ID, &s.JobID, &s.ProductionStageID, &s.StageName, &s.StageOrder, &s.Status,
			&s.EstimatedMinutes, &s.SetupMinutes, &part, &s.DependencyGroup,
			&s.ScheduledStartAt, &s.ScheduledEndAt, &s.ScheduledMinutes, &s.ScheduleStatus); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		s.PartAssignment = domain.NormalizePart(part)
		jws, ok := byID[s.JobID]
		if !ok {
			continue // orphaned stage instance (FK should prevent this); skip defensively
		}
		jws.Stages = append(jws.Stages, s)
	}
	if err := stageRows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.JobWithStages, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}
