package cleanup

import (
	"context"
	"time"

	"github.com/aatumaykin/ocalt/internal/logger"
)

const defaultInterval = time.Hour

// Loop runs a cleanup pass right away and then every Interval until ctx
// is cancelled. It never returns an error: failed passes are logged.
func (r *Runner) Loop(ctx context.Context) error {
	if !r.config.Enabled() {
		r.logger.Debug("cleanup disabled")
		return nil
	}

	interval := r.config.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("cleanup scheduler started",
		logger.Field{Key: "interval", Value: interval.String()},
		logger.Field{Key: "log_retention", Value: r.config.LogRetention.String()},
		logger.Field{Key: "relay_retention", Value: r.config.RelayRetention.String()})

	for {
		if _, err := r.Run(); err != nil {
			r.logger.Error("cleanup failed", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			r.logger.Info("cleanup scheduler stopped")
			return nil
		}
	}
}
