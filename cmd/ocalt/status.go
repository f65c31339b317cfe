package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/ipc"
	"github.com/aatumaykin/ocalt/internal/scheduler"
	"github.com/aatumaykin/ocalt/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every job with its last run from the ledger",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		log := quietLogger()

		ledger, err := state.NewFileStore(cfg.Scheduler.StateFile, log).Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to read ledger: %v\n", err)
			os.Exit(1)
		}

		out := cmd.OutOrStdout()
		if pid := ipc.Running(filepath.Dir(cfg.Scheduler.StateFile)); pid != 0 {
			fmt.Fprintf(out, "🟢 scheduler running (pid %d)\n", pid)
		} else {
			fmt.Fprintln(out, "⚪ scheduler not running")
		}
		fmt.Fprintln(out, renderStatus(cfg, ledger, time.Now()))
	},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

	statusColors = map[state.Status]lipgloss.Color{
		state.StatusOK:         "#5FD787",
		state.StatusSuppressed: "#888888",
		state.StatusTimeout:    "#FFAF5F",
		state.StatusError:      "#FF6B6B",
	}
)

// renderStatus строит таблицу задач: конфигурация + последняя запись ledger
func renderStatus(cfg *config.Config, ledger state.Ledger, now time.Time) string {
	var rows [][]string

	for _, agent := range cfg.Agents {
		for _, job := range agent.Jobs {
			js, ok := ledger[job.Key(agent.Name)]

			mode := job.Mode
			if job.Interactive {
				mode += " (interactive)"
			}
			next := "-"
			if t, err := scheduler.NextRun(job.Schedule, now); err == nil {
				next = t.Format("01-02 15:04")
			}

			lastRun, status, duration, runs := "never", "-", "-", "0"
			if ok {
				lastRun = js.LastRun.Local().Format("2006-01-02 15:04:05")
				status = string(js.LastStatus)
				if c, ok := statusColors[js.LastStatus]; ok {
					status = lipgloss.NewStyle().Foreground(c).Render(status)
				}
				duration = (time.Duration(js.LastDuration * float64(time.Second))).Round(100 * time.Millisecond).String()
				runs = fmt.Sprint(js.RunCount)
			}

			rows = append(rows, []string{agent.Name, job.Name, job.Schedule, mode, next, lastRun, status, duration, runs})
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("AGENT", "JOB", "SCHEDULE", "MODE", "NEXT", "LAST RUN", "STATUS", "DURATION", "RUNS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.String()
}
