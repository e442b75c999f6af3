package app

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically returns expired assignments to the pool.
type Reaper struct {
	pool     *PoolService
	interval time.Duration
	logger   *slog.Logger
}

func NewReaper(pool *PoolService, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{pool: pool, interval: interval, logger: logger.With("component", "reaper")}
}

// Run reaps once immediately and then on every tick until ctx is cancelled.
// A failed pass is logged and retried on the next tick.
func (r *Reaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Reaper started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.reapOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Reaper stopped")
			return nil
		case <-ticker.C:
			r.reapOnce(ctx)
		}
	}
}

func (r *Reaper) reapOnce(ctx context.Context) {
	n, err := r.pool.Reap(ctx, r.pool.config.Now())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "Reap pass failed", "error", err)
		return
	}
	r.logger.DebugContext(ctx, "Reap pass finished", "reaped", n)
}
