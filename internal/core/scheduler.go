package core

// scheduler.go runs periodic maintenance of the import history.
//
// The pruner deletes run summaries older than the retention window. It runs
// once at startup and then on every tick until its context is cancelled.
// A failed pass is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig configures the history pruner. Zero values select defaults.
type PruneConfig struct {
	RetentionDays int           // Days to keep run summaries (default: 30)
	CheckInterval time.Duration // How often to prune (default: 24h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// RunHistoryPruner blocks, pruning store until ctx is cancelled.
func RunHistoryPruner(ctx context.Context, store HistoryStore, cfg PruneConfig) {
	cfg = cfg.withDefaults()
	slog.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval.String(),
	)

	pruneHistory(ctx, store, cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			pruneHistory(ctx, store, cfg.RetentionDays)
		}
	}
}

// pruneHistory performs one purge pass.
func pruneHistory(ctx context.Context, store HistoryStore, retentionDays int) {
	start := time.Now()
	cutoff := timeNow().UTC().AddDate(0, 0, -retentionDays)

	purged, err := store.PurgeBefore(ctx, cutoff)
	if err != nil {
		slog.Error("history purge failed", "error", err)
		return
	}

	slog.Info("purged import history",
		"entries_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
