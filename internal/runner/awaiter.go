package runner

import (
	"context"
	"os"
	"strings"
	"time"
)

// Completion is what the awaiter observed for one run.
type Completion struct {
	Output   string // лог без строки маркера
	TimedOut bool
}

// Awaiter waits until a dispatched run finishes or its budget is exhausted.
type Awaiter interface {
	Await(ctx context.Context, logPath string, budget time.Duration) (Completion, error)
}

// LogPoller detects completion by polling the run log for the marker line.
// A missing or unreadable log counts as "no output yet".
type LogPoller struct {
	Marker   string
	Interval time.Duration
}

// Await polls logPath every Interval. It returns when the marker line is
// present or when budget has elapsed; the last read is checked at the
// deadline itself. The error is non-nil only when ctx is done.
func (p LogPoller) Await(ctx context.Context, logPath string, budget time.Duration) (Completion, error) {
	deadline := time.Now().Add(budget)
	for {
		content := readLog(logPath)
		if output, done := stripMarker(content, p.Marker); done {
			return Completion{Output: output}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			output, _ := stripMarker(content, p.Marker)
			return Completion{Output: output, TimedOut: true}, nil
		}

		wait := p.Interval
		if wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Completion{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func readLog(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// stripMarker убирает строки маркера и сообщает, встретился ли он
func stripMarker(content, marker string) (string, bool) {
	if marker == "" || !strings.Contains(content, marker) {
		return strings.TrimSpace(content), false
	}

	found := false
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == marker {
			found = true
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n")), found
}
