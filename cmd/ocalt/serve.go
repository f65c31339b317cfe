package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/ocalt/internal/app"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/ipc"
	"github.com/aatumaykin/ocalt/internal/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler and chat listeners",
	Long: `Start the scheduler with the given configuration.
Every configured job is scheduled, Telegram and Discord listeners are started
and the process blocks until SIGINT or SIGTERM. Job windows that are still
running are left alone on shutdown.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	log := newLogger(cfg)
	defer func() { _ = log.Close() }()
	logger.SetDefault(log)

	log.Info("🚀 Starting ocalt",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "state_file", Value: cfg.Scheduler.StateFile},
		logger.Field{Key: "tmux_session", Value: cfg.Scheduler.TmuxSession})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := app.New(cfg, log).Run(ctx)

	var running *ipc.AlreadyRunningError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		log.Info("👋 ocalt stopped")
	case errors.As(err, &running):
		fmt.Fprintf(os.Stderr, constants.MsgSchedulerRunning, running.PID)
		os.Exit(1)
	default:
		log.Error("scheduler stopped with error", err)
		os.Exit(1)
	}
}
