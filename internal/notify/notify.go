// Package notify posts a webhook notification when a schedule run
// completes, built on the platform's retrying HTTP client.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"printflow-scheduler/internal/planner"
	"printflow-scheduler/internal/platform/httpclient"
)

// RunCompletion is the payload posted to the configured webhook URL.
type RunCompletion struct {
	RunID       uuid.UUID `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
	Division    string    `json:"division,omitempty"`
	Applied     int       `json:"applied"`
	Skipped     int       `json:"skipped"`
	Failures    int       `json:"failures"`
	Warnings    int       `json:"warnings"`
}

// Notifier posts RunCompletion events. A zero-value URL disables notification.
type Notifier struct {
	client *httpclient.Client
	url    string
	log    *slog.Logger
}

// New wires a Notifier. url may be empty, in which case Notify is a no-op.
func New(url string, log *slog.Logger) *Notifier {
	client := httpclient.New(
		httpclient.WithLogger(log),
		httpclient.WithTimeout(10*time.Second),
		httpclient.WithRetries(3, 250*time.Millisecond),
		httpclient.WithMaxBackoff(5*time.Second),
		httpclient.WithRetryNonIdempotent(true),
	)
	return &Notifier{client: client, url: url, log: log}
}

// Notify posts a completion event. Failures are logged, never returned: a
// failed notification must never fail the run it is reporting on.
func (n *Notifier) Notify(ctx context.Context, event RunCompletion) {
	if n.url == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.log.Error("notify: marshal run completion", slog.Any("error", err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.log.Error("notify: build request", slog.Any("error", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(ctx, req)
	if err != nil {
		n.log.Warn("notify: webhook delivery failed", slog.String("run_id", event.RunID.String()), slog.Any("error", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn("notify: webhook rejected", slog.String("run_id", event.RunID.String()), slog.Int("status", resp.StatusCode))
	}
}

// EventFromResult builds a RunCompletion from a planner.Result and applier outcome.
func EventFromResult(runID uuid.UUID, division string, applied, skipped int, result planner.Result) RunCompletion {
	return RunCompletion{
		RunID:       runID,
		CompletedAt: time.Now(),
		Division:    division,
		Applied:     applied,
		Skipped:     skipped,
		Failures:    len(result.Failures),
		Warnings:    len(result.Warnings),
	}
}
