package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically prunes
// journal records older than retention. It stops when ctx is done.
func StartRetentionWorker(ctx context.Context, j Journal, retention, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneExpired(ctx, j, retention, time.Now())
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneExpired(ctx context.Context, j Journal, retention time.Duration, now time.Time) int64 {
	deleted, err := j.Prune(ctx, now.Add(-retention))
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during prune", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to prune launch records", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned launch records", "count", deleted)
	}
	return deleted
}
