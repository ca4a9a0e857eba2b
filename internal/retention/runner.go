package retention

import (
	"context"
	"log/slog"
	"time"
)

// Runner invokes the sweep on a fixed interval. The sweep is also invokable
// out-of-band (admin endpoint) for operational remediation; re-entrancy is
// guaranteed by the sweep itself.
type Runner struct {
	scheduler *Scheduler
	interval  time.Duration
	logger    *slog.Logger
}

func NewRunner(scheduler *Scheduler, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Runner{scheduler: scheduler, interval: interval, logger: logger}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := r.scheduler.Sweep(ctx, now); err != nil {
				r.logger.Error("retention sweep failed", "error", err)
			}
		}
	}
}
