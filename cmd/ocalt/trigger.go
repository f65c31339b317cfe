package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/ocalt/internal/app"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/ipc"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <agent>/<job>|<job>",
	Short: "Run a job right now",
	Long: `Run a job immediately through the same path the scheduler uses.
When serve is running for the same state file the run is handed to it over
the control socket, so the ledger keeps a single writer.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ref := args[0]
		cfg := loadConfig()
		if _, _, ok := cfg.FindJob(ref); !ok {
			fmt.Fprintf(os.Stderr, constants.MsgJobNotFound, ref)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		stateDir := filepath.Dir(cfg.Scheduler.StateFile)
		if pid := ipc.Running(stateDir); pid != 0 {
			fmt.Fprintf(out, "▶️  handing %s to the running scheduler (pid %d)\n", ref, pid)
			resp, err := ipc.Call(ctx, ipc.GetSocketPath(stateDir), ipc.Request{Type: ipc.RequestTrigger, Job: ref})
			if err != nil {
				fmt.Fprintf(os.Stderr, "❌ %s: %v\n", ref, err)
				os.Exit(1)
			}
			printRun(out, ref, resp.Status, time.Duration(resp.Duration*float64(time.Second)), resp.LogPath)
			return
		}

		log := newLogger(cfg)
		defer func() { _ = log.Close() }()

		fmt.Fprintf(out, "▶️  running %s\n", ref)
		res, err := app.New(cfg, log).Trigger(ctx, ref)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", ref, err)
			os.Exit(1)
		}
		printRun(out, ref, string(res.Status), res.Duration, res.LogPath)
	},
}

func printRun(w io.Writer, ref, status string, d time.Duration, logPath string) {
	fmt.Fprintf(w, "✅ %s finished: %s in %s\n", ref, status, d.Round(100*time.Millisecond))
	if logPath != "" {
		fmt.Fprintf(w, "   log: %s\n", logPath)
	}
}
