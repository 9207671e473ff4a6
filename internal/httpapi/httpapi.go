// Package httpapi exposes the scheduler over HTTP: a run endpoint that
// triggers one planning pass and a health endpoint for readiness probes.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"printflow-scheduler/internal/applier"
	"printflow-scheduler/internal/calendar"
	"printflow-scheduler/internal/notify"
	"printflow-scheduler/internal/planner"
	"printflow-scheduler/internal/platform/pg"
	"printflow-scheduler/internal/runhistory"
	"printflow-scheduler/internal/runqueue"
	"printflow-scheduler/internal/shared"
	"printflow-scheduler/internal/snapshot"
)

// RunRequest is the body of POST /v1/schedule/run, matching the run
// entrypoint's documented options.
type RunRequest struct {
	// Commit persists updates; false runs a dry run. Defaults to true when
	// the field is absent from the request body.
	Commit *bool `json:"commit"`

	// Proposed marks written rows schedule_status="proposed" instead of
	// "scheduled".
	Proposed bool `json:"proposed"`

	// OnlyIfUnset skips rows whose scheduled_start_at is already set.
	OnlyIfUnset bool `json:"onlyIfUnset"`

	// Nuclear wipes prior scheduling output before planning.
	Nuclear bool `json:"nuclear"`

	// WipeAll, with Nuclear, wipes unconditionally rather than only from
	// baseStart.
	WipeAll bool `json:"wipeAll"`

	// StartFrom is the baseline date (YYYY-MM-DD, local) for nuclear runs.
	// Defaults to today, local, when absent.
	StartFrom string `json:"startFrom" validate:"omitempty,datetime=2006-01-02"`

	// OnlyJobIDs restricts planning to these jobs; empty strings are
	// filtered out.
	OnlyJobIDs []string `json:"onlyJobIds" validate:"omitempty,dive,omitempty,uuid4"`

	// Division further restricts planning; empty/absent means all.
	Division string `json:"division"`

	// Source distinguishes a manual HTTP call from the cron_auto trigger.
	// Not part of the wire contract: RunAuto sets it directly.
	Source string `json:"-"`
}

// commitOrDefault reports whether the run should persist updates, applying
// the documented default of true when the field was omitted.
func (r RunRequest) commitOrDefault() bool {
	if r.Commit == nil {
		return true
	}
	return *r.Commit
}

// runResponse is the success body of POST /v1/schedule/run. Errors is
// populated from stage-level planning failures (HorizonExhausted and
// similar, spec.md §7) and write failures the applier could not persist
// (WriteFailed, spec.md §7), so a caller can see a partially-successful
// run's problems without parsing server logs.
type runResponse struct {
	OK        bool          `json:"ok"`
	Scheduled int           `json:"scheduled"`
	Applied   appliedCount  `json:"applied"`
	BaseStart *time.Time    `json:"baseStart,omitempty"`
	Errors    []runRowError `json:"errors,omitempty"`
}

type appliedCount struct {
	Updated int `json:"updated"`
}

// runRowError describes one stage that failed planning or persistence
// during a run.
type runRowError struct {
	StageID uuid.UUID `json:"stageId"`
	JobID   uuid.UUID `json:"jobId"`
	Reason  string    `json:"reason"`
}

// errorResponse is the failure body of POST /v1/schedule/run.
type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Server wires the snapshot reader, planner, applier, notifier and
// division-sharded run queue into HTTP handlers.
type Server struct {
	pool        *pgxpool.Pool
	tx          *pg.TxRunner
	loc         *time.Location
	horizonDays int
	queue       *runqueue.Dispatcher
	notifier    *notify.Notifier
	history     *runhistory.Store
	log         *slog.Logger
	validate    *validator.Validate
	limiter     *RateLimiter
	apiKeys     []string
}

// NewServer wires a Server. history may be nil, in which case run history
// is not recorded. apiKeys may be empty to disable API-key enforcement
// (local development).
func NewServer(pool *pgxpool.Pool, loc *time.Location, horizonDays int, queue *runqueue.Dispatcher, notifier *notify.Notifier, history *runhistory.Store, apiKeys []string, log *slog.Logger) *Server {
	return &Server{
		pool:        pool,
		tx:          pg.NewTxRunner(pool),
		loc:         loc,
		horizonDays: horizonDays,
		queue:       queue,
		notifier:    notifier,
		history:     history,
		log:         log,
		validate:    validator.New(),
		limiter:     NewRateLimiter(time.Second),
		apiKeys:     apiKeys,
	}
}

// RunAuto triggers one unattended planning pass, the way the cron_auto
// trigger does: commit, touching only stages that aren't already
// scheduled. It submits to the division-sharded run queue under the empty
// division key, so automatic passes are serialized with each other and with
// manual runs that name no division; a manual run for a named division may
// run concurrently with it.
func (s *Server) RunAuto(ctx context.Context) error {
	commit := true
	req := RunRequest{Commit: &commit, OnlyIfUnset: true, Source: "cron_auto"}
	var runErr error
	err := s.queue.Submit(ctx, "", func(ctx context.Context) error {
		_, runErr = s.run(ctx, req)
		return runErr
	})
	if err != nil {
		return err
	}
	return runErr
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/v1/schedule/run", APIKeyAuth(s.apiKeys), s.handleRun)
	r.GET("/v1/schedule/health", s.handleHealth)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := pg.HealthCheckPool(ctx, s.pool); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: shared.MarkKind(err, shared.KindValidation).Error()})
		return
	}
	req.Source = "manual"

	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: shared.MarkKind(err, shared.KindValidation).Error()})
		return
	}

	if !s.limiter.Allow(req.Division) {
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many schedule runs, slow down"})
		return
	}

	var resp runResponse
	var runErr error
	err := s.queue.Submit(c.Request.Context(), req.Division, func(ctx context.Context) error {
		resp, runErr = s.run(ctx, req)
		return runErr
	})

	switch {
	case errors.Is(err, shared.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		resp.OK = true
		c.JSON(http.StatusOK, resp)
	}
}

func parseOnlyJobIDs(raw []string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, s := range raw {
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, shared.MarkKind(errors.New("onlyJobIds: invalid uuid "+s), shared.KindValidation)
		}
		out = append(out, id)
	}
	return out, nil
}

// run performs one planning pass: load snapshot, compute baseStart,
// optionally nuclear-wipe, plan, apply, notify.
func (s *Server) run(ctx context.Context, req RunRequest) (runResponse, error) {
	var resp runResponse

	reader := snapshot.NewReader(s.tx)
	snap, err := reader.Load(ctx)
	if err != nil {
		return resp, err
	}

	cal, err := calendar.New(s.loc, snap.Shifts, snap.Breaks, snap.Holidays)
	if err != nil {
		return resp, shared.MarkKind(err, shared.KindInternal)
	}
	cal.SetHorizonDays(s.horizonDays)

	startFrom, err := parseStartFrom(req.StartFrom, s.loc)
	if err != nil {
		return resp, shared.MarkKind(err, shared.KindValidation)
	}
	baseStart, err := cal.NextWorkingStart(startFrom)
	if err != nil {
		return resp, shared.MarkKind(err, shared.KindInternal)
	}

	if req.Nuclear {
		scope := applier.WipeScope{WipeAll: req.WipeAll, BaseStart: baseStart}
		if err := applier.Wipe(ctx, s.tx, scope); err != nil {
			return resp, err
		}
	}

	onlyJobIDs, err := parseOnlyJobIDs(req.OnlyJobIDs)
	if err != nil {
		return resp, err
	}

	flags := planner.Flags{Division: req.Division}
	if len(onlyJobIDs) > 0 {
		flags.OnlyJobIDs = make(map[uuid.UUID]struct{}, len(onlyJobIDs))
		for _, id := range onlyJobIDs {
			flags.OnlyJobIDs[id] = struct{}{}
		}
	}
	if req.Nuclear {
		flags.PinToBase = true
		flags.BaseStart = baseStart
	}

	result := planner.Run(cal, snap, flags)

	mode := applier.Mode{Commit: req.commitOrDefault(), OnlyIfUnset: req.OnlyIfUnset, AsProposed: req.Proposed}
	a := applier.New(s.tx)
	outcome, err := a.Apply(ctx, result.Updates, mode)
	if err != nil {
		return resp, err
	}

	resp.Scheduled = len(result.Updates)
	resp.Applied = appliedCount{Updated: outcome.Applied}
	resp.BaseStart = &baseStart

	for _, f := range result.Failures {
		s.log.Warn("schedule run: stage failed", slog.String("stage_id", f.StageID.String()), slog.Any("error", f.Err))
		resp.Errors = append(resp.Errors, runRowError{StageID: f.StageID, JobID: f.JobID, Reason: f.Err.Error()})
	}
	for _, w := range result.Warnings {
		s.log.Warn("schedule run: missing predecessor", slog.String("stage_id", w.StageID.String()), slog.String("predecessor_id", w.PredecessorID.String()))
	}
	for _, f := range outcome.Failed {
		s.log.Error("schedule run: write failed", slog.String("stage_id", f.StageID.String()), slog.Any("error", f.Err))
		resp.Errors = append(resp.Errors, runRowError{StageID: f.StageID, Reason: f.Err.Error()})
	}

	runID := uuid.New()
	event := notify.EventFromResult(runID, req.Division, outcome.Applied, outcome.Skipped, result)
	s.notifier.Notify(ctx, event)
	if s.history != nil {
		if err := s.history.Record(ctx, event, req.Source, req.Nuclear); err != nil {
			s.log.Error("schedule run: record history failed", slog.Any("error", err))
		}
	}
	return resp, nil
}

// parseStartFrom parses a YYYY-MM-DD date string as local midnight in loc,
// defaulting to today, local, when raw is empty.
func parseStartFrom(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		now := time.Now().In(loc)
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, errors.New("startFrom: invalid date " + raw)
	}
	return t, nil
}
