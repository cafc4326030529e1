package processing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docintake-backend/internal/documents"
	"docintake-backend/internal/shared/telemetry"
)

// Janitor fails processing runs whose owner died mid-run. It scans for
// documents that have held processing status longer than Timeout.
type Janitor struct {
	Docs     documents.Repo
	Repo     Repo
	Timeout  time.Duration
	Interval time.Duration
}

// Start runs the sweep loop until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep releases every stale run once.
func (j *Janitor) Sweep(ctx context.Context) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-timeout)

	released, err := j.Docs.ReleaseStale(ctx, cutoff)
	if err != nil {
		telemetry.Error("stale run sweep failed", map[string]any{"error": err.Error()})
		return
	}
	for _, id := range released {
		telemetry.Warn("released stale processing run", map[string]any{
			"documentId": id,
			"cutoff":     cutoff.Format(time.RFC3339),
		})
		entry := LogEntry{
			ID:         uuid.NewString(),
			DocumentID: id,
			Action:     ActionProcessingReleased,
			Details:    "run exceeded processing timeout",
			CreatedAt:  time.Now().UTC(),
		}
		if err := j.Repo.AppendLog(ctx, entry); err != nil {
			telemetry.Error("could not log stale release", map[string]any{
				"documentId": id,
				"error":      err.Error(),
			})
		}
	}
}
