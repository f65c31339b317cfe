// Package scheduler fires configured jobs on their cron schedules.
// It uses robfig/cron/v3: one entry per job, every fire runs in its own
// goroutine, so a slow job never delays other jobs or its own next fire.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/runner"
)

// ErrAlreadyStarted возвращается при повторном вызове Start
var ErrAlreadyStarted = errors.New("scheduler already started")

// JobRunner executes one job run.
type JobRunner interface {
	Run(ctx context.Context, agent config.AgentConfig, job config.JobConfig) (runner.Result, error)
}

// Entry describes one scheduled job.
type Entry struct {
	Key      string
	Schedule string
	Next     time.Time
}

// Scheduler manages one cron entry per configured job.
type Scheduler struct {
	cron    *cron.Cron
	runner  JobRunner
	logger  *logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.RWMutex

	entries map[string]cron.EntryID // "agent/job" -> entry
	specs   map[string]string
}

// New creates a scheduler that hands every fire to r.
func New(r JobRunner, log *logger.Logger) *Scheduler {
	log = log.With(logger.Field{Key: "component", Value: "scheduler"})
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		runner:  r,
		logger:  log,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
		specs:   make(map[string]string),
	}
}

// AddJobs registers every job of every agent. The first invalid schedule
// aborts with an error; nothing is partially started.
func (s *Scheduler) AddJobs(agents []config.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agent := range agents {
		for _, job := range agent.Jobs {
			key := job.Key(agent.Name)
			if _, exists := s.entries[key]; exists {
				return fmt.Errorf("job %s is already scheduled", key)
			}
			schedule, err := config.ParseSchedule(job.Schedule)
			if err != nil {
				return fmt.Errorf("invalid cron expression %q for job %s: %w", job.Schedule, key, err)
			}

			id := s.cron.Schedule(schedule, cron.FuncJob(func() {
				s.fire(agent, job)
			}))
			s.entries[key] = id
			s.specs[key] = job.Schedule

			s.logger.Info("job scheduled",
				logger.Field{Key: "job", Value: key},
				logger.Field{Key: "schedule", Value: job.Schedule})
		}
	}
	return nil
}

// Start starts the timers. Runs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()

	s.logger.Info("scheduler started", logger.Field{Key: "jobs", Value: len(s.entries)})
	return nil
}

// Stop stops all timers. In-flight runs are not waited for: their agent
// processes keep running in their windows.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.started = false
	s.logger.Info("scheduler stopped")
}

// Entries returns scheduled jobs with their next fire time.
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for key, id := range s.entries {
		out = append(out, Entry{Key: key, Schedule: s.specs[key], Next: s.cron.Entry(id).Next})
	}
	return out
}

// NextRun returns the next fire time of expr after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := config.ParseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}

func (s *Scheduler) fire(agent config.AgentConfig, job config.JobConfig) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	_, err := s.runner.Run(ctx, agent, job)
	switch {
	case err == nil, errors.Is(err, runner.ErrJobBusy):
	case errors.Is(err, context.Canceled):
		s.logger.Debug("run abandoned on shutdown", logger.Field{Key: "job", Value: job.Key(agent.Name)})
	default:
		s.logger.Error("job run failed", err, logger.Field{Key: "job", Value: job.Key(agent.Name)})
	}
}

// cronLogger направляет сообщения robfig/cron (в т.ч. паники из Recover) в наш logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, err, pairs(keysAndValues)...)
}

func pairs(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
