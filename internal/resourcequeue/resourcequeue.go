// Package resourcequeue tracks, per production stage (resource), the
// latest end time of any stage already placed on it during the current
// run — the mechanism that enforces per-resource mutual exclusion.
package resourcequeue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue maps a resource id to its next-free time. A Planner run is
// single-threaded, but the mutex guards against a Queue instance
// accidentally being reused across concurrent runs (e.g. a retried HTTP
// request racing the original).
type Queue struct {
	mu   sync.Mutex
	free map[uuid.UUID]time.Time
}

// New returns an empty queue; every resource starts available immediately.
func New() *Queue {
	return &Queue{free: make(map[uuid.UUID]time.Time)}
}

// SeededAt returns a queue with every listed resource's free time pinned to
// baseStart, used at the start of a nuclear run so the whole plan begins at
// one clean boundary.
func SeededAt(resources []uuid.UUID, baseStart time.Time) *Queue {
	q := New()
	for _, r := range resources {
		q.free[r] = baseStart
	}
	return q
}

// EarliestAvailable returns max(queue[resource], floor).
func (q *Queue) EarliestAvailable(resource uuid.UUID, floor time.Time) time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.free[resource]; ok && t.After(floor) {
		return t
	}
	return floor
}

// Advance sets queue[resource] = max(queue[resource], newEnd).
func (q *Queue) Advance(resource uuid.UUID, newEnd time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.free[resource]; !ok || newEnd.After(t) {
		q.free[resource] = newEnd
	}
}
