// Package cleanup removes job logs and drop folder records that are older
// than their configured retention. Nothing else is ever deleted.
package cleanup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aatumaykin/ocalt/internal/logger"
)

// Pruner is the drop folder side of a cleanup pass.
type Pruner interface {
	Prune(cutoff time.Time) (int, error)
}

// Runner performs cleanup passes.
type Runner struct {
	config Config
	relay  Pruner // nil: drop folder disabled
	logger *logger.Logger
	now    func() time.Time
}

// NewRunner creates a new cleanup runner.
func NewRunner(cfg Config, relay Pruner, log *logger.Logger) *Runner {
	return &Runner{
		config: cfg,
		relay:  relay,
		logger: log.With(logger.Field{Key: "component", Value: "cleanup"}),
		now:    time.Now,
	}
}

// Run performs one cleanup pass. A failure in one area does not stop the
// other; errors are joined.
func (r *Runner) Run() (Stats, error) {
	start := r.now()
	var stats Stats
	var errs []error

	if r.config.LogRetention > 0 {
		n, freed, err := r.pruneLogs(start.Add(-r.config.LogRetention))
		stats.LogsDeleted, stats.BytesFreed = n, freed
		if err != nil {
			errs = append(errs, err)
		}
	}

	if r.config.RelayRetention > 0 && r.relay != nil {
		n, err := r.relay.Prune(start.Add(-r.config.RelayRetention))
		stats.RecordsDeleted = n
		if err != nil {
			errs = append(errs, err)
		}
	}

	stats.Duration = r.now().Sub(start)
	if stats.LogsDeleted > 0 || stats.RecordsDeleted > 0 {
		r.logger.Info("cleanup completed",
			logger.Field{Key: "logs_deleted", Value: stats.LogsDeleted},
			logger.Field{Key: "records_deleted", Value: stats.RecordsDeleted},
			logger.Field{Key: "bytes_freed", Value: stats.BytesFreed})
	}
	return stats, errors.Join(errs...)
}

// pruneLogs удаляет *.log старше cutoff по времени модификации
func (r *Runner) pruneLogs(cutoff time.Time) (int, int64, error) {
	entries, err := os.ReadDir(r.config.LogsDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read logs directory: %w", err)
	}

	var deleted int
	var freed int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.config.LogsDir, e.Name())
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return deleted, freed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		deleted++
		freed += info.Size()
	}
	return deleted, freed, nil
}
