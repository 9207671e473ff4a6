package shared

import "errors"

// Scheduler-specific sentinel errors, layered on top of the generic Kind
// taxonomy above. Each maps to exactly one Kind except ErrPredecessorMissing,
// which by design carries no Kind at all: a missing predecessor is a warning
// folded into a run's output, never a reason to fail it.
var (
	// ErrInputInvalid marks a malformed schedule-run request (bad flags,
	// unknown job ids, invalid division). Maps to KindValidation.
	ErrInputInvalid = errors.New("schedule: input invalid")

	// ErrSnapshotUnavailable marks a failure to read a consistent snapshot
	// of shifts/breaks/holidays/routes/jobs. Maps to KindDependencyFailure.
	ErrSnapshotUnavailable = errors.New("schedule: snapshot unavailable")

	// ErrHorizonExhausted marks a stage that could not be placed within the
	// calendar's horizon. Maps to KindInvariantViolated; a run reporting it
	// still commits every other stage (fail-open, partial success).
	ErrHorizonExhausted = errors.New("schedule: horizon exhausted")

	// ErrPredecessorMissing marks a candidate stage whose barrier
	// predecessor has no recorded end time. It carries no Kind: callers
	// record it as a warning on the run's output and keep scheduling.
	ErrPredecessorMissing = errors.New("schedule: predecessor missing")

	// ErrWriteFailed marks a failure of the apply transaction as a whole.
	// Maps to KindDependencyFailure; when Apply returns it, none of the
	// run's updates were committed. A single row that fails to write is
	// reported in the apply outcome instead, and the other rows still commit.
	ErrWriteFailed = errors.New("schedule: write failed")

	// ErrNuclearWipeFailed marks a failure during the nuclear wipe step
	// that precedes a nuclear-mode run. Maps to KindDependencyFailure and
	// aborts the run entirely: no partial wipe is ever left in place.
	ErrNuclearWipeFailed = errors.New("schedule: nuclear wipe failed")
)

// IsHorizonExhausted reports whether err is (or wraps) ErrHorizonExhausted.
func IsHorizonExhausted(err error) bool {
	return errors.Is(err, ErrHorizonExhausted)
}

// IsPredecessorMissing reports whether err is (or wraps) ErrPredecessorMissing.
func IsPredecessorMissing(err error) bool {
	return errors.Is(err, ErrPredecessorMissing)
}
