package agentcli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/logger"
)

// ErrEmptyPrompt возвращается при попытке вызвать агента без текста
var ErrEmptyPrompt = errors.New("prompt is empty")

// Invoker runs the agent CLI synchronously and captures its combined output.
// It is used for routed chat replies, never for scheduled jobs.
type Invoker struct {
	builder Builder
	logger  *logger.Logger
}

// NewInvoker creates a new Invoker.
func NewInvoker(b Builder, log *logger.Logger) *Invoker {
	return &Invoker{builder: b, logger: log}
}

// Continue sends prompt to the agent's session in workdir and waits for the
// answer at most timeout. The exit status is checked: a failing CLI is an error.
func (i *Invoker) Continue(ctx context.Context, agent config.AgentConfig, workdir, prompt string, timeout time.Duration) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := i.builder.ContinueArgs(agent, prompt)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workdir
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	i.logger.Debug("agent invoked",
		logger.Field{Key: "agent", Value: agent.Name},
		logger.Field{Key: "duration", Value: duration.String()})

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("agent %s did not answer within %s", agent.Name, timeout)
	}
	if err != nil {
		output := strings.TrimSpace(out.String())
		if output != "" {
			return "", fmt.Errorf("%w: %s", err, output)
		}
		return "", err
	}

	return strings.TrimSpace(out.String()), nil
}
