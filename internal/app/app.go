// Package app wires the scheduler process together: ledger, runner,
// cron scheduler, chat adapters, retention cleanup, metrics and the
// control socket.
package app

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aatumaykin/ocalt/internal/channels/discord"
	"github.com/aatumaykin/ocalt/internal/channels/telegram"
	"github.com/aatumaykin/ocalt/internal/cleanup"
	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/ipc"
	"github.com/aatumaykin/ocalt/internal/logger"
	"github.com/aatumaykin/ocalt/internal/metrics"
	"github.com/aatumaykin/ocalt/internal/runner"
	"github.com/aatumaykin/ocalt/internal/scheduler"
	"github.com/aatumaykin/ocalt/internal/state"
	"github.com/aatumaykin/ocalt/internal/version"
)

// App represents the main application structure.
type App struct {
	config *config.Config
	logger *logger.Logger

	metrics   *metrics.Metrics
	store     *state.FileStore
	windows   runner.Windower
	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	cleanup   *cleanup.Runner

	telegram *telegram.Connector
	discord  *discord.Connector

	ipc     *ipc.Server
	release func()

	mu          sync.Mutex
	initialized bool
}

// Option customizes an App.
type Option func(*App)

// WithWindows replaces the tmux client that hosts job windows.
func WithWindows(w runner.Windower) Option {
	return func(a *App) { a.windows = w }
}

// New creates a new App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	a := &App{config: cfg, logger: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StateDir is the directory holding the ledger, the PID file and the socket.
func (a *App) StateDir() string {
	return filepath.Dir(a.config.Scheduler.StateFile)
}

// Run claims the state directory, starts the scheduler and every listener,
// and blocks until ctx is cancelled. In-flight job windows are left running.
func (a *App) Run(ctx context.Context) error {
	release, err := ipc.Acquire(a.StateDir())
	if err != nil {
		return err
	}
	a.release = release
	defer a.Shutdown()

	if err := a.Initialize(ctx); err != nil {
		return err
	}
	if err := a.scheduler.AddJobs(a.config.Agents); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := a.scheduler.Start(gctx); err != nil {
		return err
	}

	if a.telegram != nil {
		g.Go(func() error { return a.telegram.Listen(gctx) })
	}
	if a.discord != nil {
		g.Go(func() error { return a.discord.Listen(gctx) })
	}
	if a.metrics != nil {
		g.Go(func() error { return a.metrics.Serve(gctx, a.config.Metrics.Listen, a.logger) })
	}
	g.Go(func() error { return a.cleanup.Loop(gctx) })
	a.ipc = ipc.NewServer(a.runner, a.logger)
	g.Go(func() error { return a.ipc.Serve(gctx, ipc.GetSocketPath(a.StateDir())) })

	a.logger.Info("✅ ocalt is running",
		logger.Field{Key: "version", Value: version.Version},
		logger.Field{Key: "agents", Value: len(a.config.Agents)},
		logger.Field{Key: "jobs", Value: len(a.scheduler.Entries())})

	return g.Wait()
}

// Trigger runs one job in this process without the scheduler.
func (a *App) Trigger(ctx context.Context, ref string) (runner.Result, error) {
	if err := a.Initialize(ctx); err != nil {
		return runner.Result{}, err
	}
	return a.runner.Trigger(ctx, ref)
}

// Scheduler returns the scheduler built by Initialize.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Shutdown stops the timers and releases the state directory.
func (a *App) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.release != nil {
		a.release()
		a.release = nil
	}
	a.logger.Info("application shutdown complete")
}
