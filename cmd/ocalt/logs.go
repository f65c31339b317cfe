package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	re2 "github.com/wasilibs/go-re2"

	"github.com/aatumaykin/ocalt/internal/constants"
)

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs <agent>/<job>|<job>",
	Short: "Print the tail of a job's most recent log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ref := args[0]
		cfg := loadConfig()

		pattern := logPattern(".+-" + re2.QuoteMeta(ref))
		if agent, job, ok := cfg.FindJob(ref); ok {
			pattern = logPattern(re2.QuoteMeta(agent.Name + "-" + job.Name))
		}

		path, err := latestLog(cfg.Scheduler.LogsDir, pattern)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		if path == "" {
			fmt.Fprintf(cmd.OutOrStdout(), constants.MsgNoLogs, ref)
			return
		}

		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "==> %s <==\n%s\n", path, tail(string(data), logsLines))
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
}

// logPattern matches run logs of one job: <prefix>-YYYYMMDD-HHMMSS.log
func logPattern(prefix string) *re2.Regexp {
	return re2.MustCompile(`^` + prefix + `-\d{8}-\d{6}\.log$`)
}

// latestLog возвращает самый свежий лог по шаблону; метка времени в имени
// фиксированной ширины, поэтому хватает сортировки
func latestLog(dir string, pattern *re2.Regexp) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read logs directory: %w", err)
	}

	var matches []string
	for _, e := range entries {
		if !e.IsDir() && pattern.MatchString(e.Name()) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return filepath.Join(dir, matches[len(matches)-1]), nil
}

// tail возвращает последние n строк
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
