// Package dependency computes, for a candidate stage instance, the earliest
// start contributed by its intra-job predecessors under the cover/text/both
// part-assignment model and optional explicit dependency groups.
package dependency

import (
	"time"

	"github.com/google/uuid"

	"printflow-scheduler/internal/domain"
)

// IsBarrier reports whether predecessor P is a barrier for candidate C,
// i.e. C.start >= P.end must hold, per spec §4.2. Callers must already have
// established P.StageOrder < C.StageOrder (strict) before calling this —
// IsBarrier itself does not compare orders.
func IsBarrier(p, c domain.StageInstance) bool {
	if c.DependencyGroup != nil && p.DependencyGroup != nil && *c.DependencyGroup == *p.DependencyGroup {
		return true
	}

	pPart, cPart := p.PartAssignment, c.PartAssignment
	switch {
	case pPart == domain.PartBoth:
		return true
	case cPart == domain.PartBoth && (pPart == domain.PartUnassigned || pPart == domain.PartCover || pPart == domain.PartText):
		return true
	case (cPart == domain.PartCover || cPart == domain.PartText) && pPart == cPart:
		return true
	case cPart == domain.PartUnassigned || pPart == domain.PartUnassigned:
		return true
	default:
		return false
	}
}

// MissingPredecessors returns every barrier predecessor of candidate that has
// no recorded end time in ends, for the caller to surface as a
// PredecessorMissing warning (spec §7) without failing the run.
func MissingPredecessors(candidate domain.StageInstance, predecessors []domain.StageInstance, ends map[uuid.UUID]time.Time) []domain.StageInstance {
	var missing []domain.StageInstance
	for _, p := range predecessors {
		if p.EffectiveOrder() >= candidate.EffectiveOrder() {
			continue
		}
		if !IsBarrier(p, candidate) {
			continue
		}
		if _, ok := ends[p.ID]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// EffectiveEarliestStart computes max(P.end) over every predecessor P within
// the same job for which IsBarrier(P, candidate) holds, using ends (a
// per-run map of already-placed stage end times keyed by stage id). Absent
// any barrier, it returns jobBaseline.
func EffectiveEarliestStart(jobBaseline time.Time, candidate domain.StageInstance, predecessors []domain.StageInstance, ends map[uuid.UUID]time.Time) time.Time {
	earliest := jobBaseline
	for _, p := range predecessors {
		if p.EffectiveOrder() >= candidate.EffectiveOrder() {
			continue
		}
		if !IsBarrier(p, candidate) {
			continue
		}
		end, ok := ends[p.ID]
		if !ok {
			// PredecessorMissing: treat as no barrier, per spec §7.
			continue
		}
		if end.After(earliest) {
			earliest = end
		}
	}
	return earliest
}
