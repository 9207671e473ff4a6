// Package planner orchestrates the calendar, dependency resolver, and
// resource queue to turn a snapshot of jobs and stages into a deterministic
// list of placement updates. The planner performs no I/O: it is a pure
// function of its inputs.
package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"printflow-scheduler/internal/calendar"
	"printflow-scheduler/internal/dependency"
	"printflow-scheduler/internal/domain"
	"printflow-scheduler/internal/resourcequeue"
)

// Flags controls one planning run.
type Flags struct {
	// PinToBase, when true (nuclear mode), pins every job's baseline to
	// BaseStart instead of the job's own proof_approved_at.
	PinToBase bool
	BaseStart time.Time

	// OnlyJobIDs restricts planning to these jobs; empty means all eligible jobs.
	OnlyJobIDs map[uuid.UUID]struct{}

	// Division, if non-empty, additionally restricts planning to jobs whose
	// Division field matches exactly (SPEC_FULL.md §D).
	Division string
}

// StageFailure records a per-stage planning error (fail-open: the run
// continues with the remaining stages and jobs).
type StageFailure struct {
	StageID uuid.UUID
	JobID   uuid.UUID
	Err     error
}

// PredecessorWarning records a candidate stage that had a barrier
// predecessor with no recorded end time (PredecessorMissing, spec §7):
// never a failure, always scheduled as if that predecessor were absent.
type PredecessorWarning struct {
	StageID       uuid.UUID
	JobID         uuid.UUID
	PredecessorID uuid.UUID
}

// Result is everything one planning run produced.
type Result struct {
	Updates  []domain.PlacementUpdate
	Failures []StageFailure
	Warnings []PredecessorWarning
}

// Run executes the algorithm in spec §4.4 against snap using cal for
// calendar arithmetic. Given the same snapshot, flags, and calendar, Run
// produces byte-identical output on every call.
func Run(cal *calendar.Calendar, snap domain.Snapshot, flags Flags) Result {
	jobs := filterAndSortJobs(snap.Jobs, flags)

	queue := resourcequeue.New()
	if flags.PinToBase {
		queue = resourcequeue.SeededAt(allResourceIDs(snap.Jobs), flags.BaseStart)
	}

	var result Result
	ends := make(map[uuid.UUID]time.Time)

	for _, jws := range jobs {
		job := jws.Job
		baseline := *job.ProofApprovedAt
		if flags.PinToBase {
			baseline = flags.BaseStart
		}

		stages := schedulableStagesInOrder(jws.Stages)

		for _, c := range stages {
			for _, missing := range dependency.MissingPredecessors(c, stages, ends) {
				result.Warnings = append(result.Warnings, PredecessorWarning{StageID: c.ID, JobID: job.ID, PredecessorID: missing.ID})
			}

			earliest := dependency.EffectiveEarliestStart(baseline, c, stages, ends)
			earliest = queue.EarliestAvailable(c.ProductionStageID, earliest)

			duration := c.Duration()

			var start, end time.Time
			if duration == 0 {
				s, err := cal.NextWorkingStart(earliest)
				if err != nil {
					result.Failures = append(result.Failures, StageFailure{StageID: c.ID, JobID: job.ID, Err: fmt.Errorf("stage %s: %w", c.ID, err)})
					continue
				}
				start, end = s, s
			} else {
				segments, err := cal.PlaceDuration(earliest, duration)
				if err != nil {
					result.Failures = append(result.Failures, StageFailure{StageID: c.ID, JobID: job.ID, Err: fmt.Errorf("stage %s: %w", c.ID, err)})
					continue
				}
				start = segments[0].Start
				end = segments[len(segments)-1].End
			}

			result.Updates = append(result.Updates, domain.PlacementUpdate{
				StageID: c.ID,
				JobID:   job.ID,
				Start:   start,
				End:     end,
				Minutes: duration,
			})
			ends[c.ID] = end
			queue.Advance(c.ProductionStageID, end)
		}
	}

	return result
}

// filterAndSortJobs keeps eligible, in-scope jobs and sorts them FIFO by
// proof_approved_at ascending, ties broken by id.
func filterAndSortJobs(all []domain.JobWithStages, flags Flags) []domain.JobWithStages {
	out := make([]domain.JobWithStages, 0, len(all))
	for _, jws := range all {
		if !jws.Job.Eligible() {
			continue
		}
		if len(flags.OnlyJobIDs) > 0 {
			if _, ok := flags.OnlyJobIDs[jws.Job.ID]; !ok {
				continue
			}
		}
		if flags.Division != "" && jws.Job.Division != flags.Division {
			continue
		}
		out = append(out, jws)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := *out[i].Job.ProofApprovedAt, *out[j].Job.ProofApprovedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].Job.ID.String() < out[j].Job.ID.String()
	})
	return out
}

// schedulableStagesInOrder filters to pending/active, non-excluded stages
// and sorts by stage_order ascending (stable, so equal-order stages keep
// their input order).
func schedulableStagesInOrder(all []domain.StageInstance) []domain.StageInstance {
	out := make([]domain.StageInstance, 0, len(all))
	for _, s := range all {
		if s.Schedulable() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveOrder() < out[j].EffectiveOrder()
	})
	return out
}

func allResourceIDs(jobs []domain.JobWithStages) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, jws := range jobs {
		for _, s := range jws.Stages {
			if _, ok := seen[s.ProductionStageID]; !ok {
				seen[s.ProductionStageID] = struct{}{}
				out = append(out, s.ProductionStageID)
			}
		}
	}
	return out
}
