// Package domain defines the strict record types consumed and produced by
// the scheduler: calendar primitives, jobs and stage instances, and the
// placement updates the planner emits.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PartAssignment distinguishes which physical part of a job a stage
// belongs to. The zero value represents "unassigned" (a single-part job).
type PartAssignment string

const (
	PartCover      PartAssignment = "cover"
	PartText       PartAssignment = "text"
	PartBoth       PartAssignment = "both"
	PartUnassigned PartAssignment = ""
)

// NormalizePart lower-cases and treats nil/empty as PartUnassigned, per
// spec §4.2's normalization rule.
func NormalizePart(s *string) PartAssignment {
	if s == nil {
		return PartUnassigned
	}
	switch v := PartAssignment(toLower(*s)); v {
	case PartCover, PartText, PartBoth:
		return v
	default:
		return PartUnassigned
	}
}

func toLower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Job is an ordered print work-order.
type Job struct {
	ID              uuid.UUID
	WorkOrderNo     string
	CustomerName    string
	TotalQuantity   int
	DueDate         *time.Time
	ProofApprovedAt *time.Time
	Division        string
}

// Eligible reports whether the job may be scheduled at all (proof approved).
func (j Job) Eligible() bool {
	return j.ProofApprovedAt != nil
}

// StageInstance is one execution of a production step within a job.
type StageInstance struct {
	ID                uuid.UUID
	JobID             uuid.UUID
	ProductionStageID uuid.UUID
	StageName         string
	StageOrder        *int
	Status            string
	EstimatedMinutes  float64
	SetupMinutes      float64
	PartAssignment    PartAssignment
	DependencyGroup   *string

	ScheduledStartAt *time.Time
	ScheduledEndAt   *time.Time
	ScheduledMinutes *int
	ScheduleStatus   string
}

// EffectiveOrder returns StageOrder, or 9999 if unset, per spec §4.4 edge cases.
func (s StageInstance) EffectiveOrder() int {
	if s.StageOrder == nil {
		return 9999
	}
	return *s.StageOrder
}

// Duration returns the clamped total duration in minutes, rounded up.
func (s StageInstance) Duration() int {
	est := s.EstimatedMinutes
	if est < 0 {
		est = 0
	}
	setup := s.SetupMinutes
	if setup < 0 {
		setup = 0
	}
	total := est + setup
	d := int(total)
	if float64(d) < total {
		d++
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Schedulable reports whether the planner should consider the stage at all:
// status pending/active, and its name doesn't match a non-schedulable resource.
func (s StageInstance) Schedulable() bool {
	switch s.Status {
	case "pending", "active":
	default:
		return false
	}
	name := toLower(s.StageName)
	for _, excluded := range []string{"proof", "dtp", "batch allocation"} {
		if containsFold(name, excluded) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needleLower string) bool {
	if len(needleLower) == 0 {
		return true
	}
	for i := 0; i+len(needleLower) <= len(haystack); i++ {
		if haystack[i:i+len(needleLower)] == needleLower {
			return true
		}
	}
	return false
}

// ProductionStage is a machine/workcenter modeled as a single-capacity queue.
type ProductionStage struct {
	ID   uuid.UUID
	Name string
}

// Shift is a per-weekday working window. Weekday follows Go's time.Weekday
// convention (0=Sunday .. 6=Saturday); see SPEC_FULL.md §3.
type Shift struct {
	Weekday      time.Weekday
	StartTime    string // "HH:MM"
	EndTime      string // "HH:MM"
	IsWorkingDay bool
}

// Break applies on every working day, clipped to whichever shift covers it.
type Break struct {
	StartTime string // "HH:MM"
	Minutes   int
}

// Holiday excludes an entire calendar date.
type Holiday struct {
	Date time.Time // local midnight, Location-less comparisons use Y/M/D only
	Name string
}

// Route validates stage membership in a job category; the planner does not
// require it when stages already carry their own StageOrder.
type Route struct {
	CategoryID        uuid.UUID
	ProductionStageID uuid.UUID
	StageOrder        int
}

// PlacementUpdate is the planner's output: one placed (start, end, minutes)
// triple for a single stage instance.
type PlacementUpdate struct {
	StageID uuid.UUID
	JobID   uuid.UUID
	Start   time.Time
	End     time.Time
	Minutes int
}

// Snapshot is the single consistent view the planner reads at the start of a run.
type Snapshot struct {
	GeneratedAt time.Time
	Shifts      []Shift
	Breaks      []Break
	Holidays    []Holiday
	Routes      []Route
	Jobs        []JobWithStages
}

// JobWithStages bundles a job with its owned stage instances, the shape the
// planner actually iterates (job owns stages; no id-based cross-references).
type JobWithStages struct {
	Job    Job
	Stages []StageInstance
}
