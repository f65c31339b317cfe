// Package tmux is a thin wrapper over the tmux session/window primitives.
//
// All job windows live in one shared session. A window is named after the
// job it displays ("agent-job"). tmux is only a display surface: commands
// are typed into a window's shell and their completion is detected
// elsewhere.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RunFunc executes tmux with the given arguments and returns its combined output.
type RunFunc func(ctx context.Context, args ...string) (string, error)

// Client targets one tmux session.
type Client struct {
	session string
	run     RunFunc
}

// New returns a Client for the given session that shells out to tmux.
func New(session string) *Client {
	return &Client{session: session, run: execRun}
}

// NewWithRunner returns a Client that executes tmux through run.
func NewWithRunner(session string, run RunFunc) *Client {
	return &Client{session: session, run: run}
}

// Session returns the name of the shared session.
func (c *Client) Session() string {
	return c.session
}

// HasSession reports whether the shared session exists.
func (c *Client) HasSession(ctx context.Context) bool {
	_, err := c.run(ctx, "has-session", "-t", c.session)
	return err == nil
}

// NewSession creates the detached session with an initial window.
func (c *Client) NewSession(ctx context.Context, firstWindow string) error {
	args := []string{"new-session", "-d", "-s", c.session}
	if firstWindow != "" {
		args = append(args, "-n", firstWindow)
	}
	_, err := c.run(ctx, args...)
	return err
}

// HasWindow reports whether a window with the given name exists in the session.
func (c *Client) HasWindow(ctx context.Context, window string) (bool, error) {
	out, err := c.run(ctx, "list-windows", "-t", c.session, "-F", "#{window_name}")
	if err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == window {
			return true, nil
		}
	}
	return false, nil
}

// NewWindow creates a detached window in the session.
func (c *Client) NewWindow(ctx context.Context, window string) error {
	_, err := c.run(ctx, "new-window", "-d", "-t", c.session+":", "-n", window)
	return err
}

// SendKeys types text into the window followed by Enter.
func (c *Client) SendKeys(ctx context.Context, window, text string) error {
	target := c.target(window)
	// -l: текст без интерпретации имён клавиш
	if _, err := c.run(ctx, "send-keys", "-t", target, "-l", text); err != nil {
		return err
	}
	_, err := c.run(ctx, "send-keys", "-t", target, "Enter")
	return err
}

// KillWindow destroys the window. A window that is already gone is not an error.
func (c *Client) KillWindow(ctx context.Context, window string) error {
	_, err := c.run(ctx, "kill-window", "-t", c.target(window))
	if err != nil && isMissing(err) {
		return nil
	}
	return err
}

// Run ensures the session and the job window exist, then sends command
// into the window. An existing window with the same name is reused.
func (c *Client) Run(ctx context.Context, window, command string) error {
	if !c.HasSession(ctx) {
		if err := c.NewSession(ctx, window); err != nil {
			return fmt.Errorf("failed to create session %s: %w", c.session, err)
		}
	} else {
		exists, err := c.HasWindow(ctx, window)
		if err != nil {
			return fmt.Errorf("failed to list windows: %w", err)
		}
		if !exists {
			if err := c.NewWindow(ctx, window); err != nil {
				return fmt.Errorf("failed to create window %s: %w", window, err)
			}
		}
	}

	if err := c.SendKeys(ctx, window, command); err != nil {
		return fmt.Errorf("failed to send command to window %s: %w", window, err)
	}
	return nil
}

func (c *Client) target(window string) string {
	return c.session + ":" + window
}

// isMissing распознаёт ответы tmux об отсутствующей сессии/окне или сервере
func isMissing(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "can't find") ||
		strings.Contains(msg, "no server running") ||
		strings.Contains(msg, "session not found")
}

func execRun(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	output, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(output))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && out != "" {
			return out, fmt.Errorf("tmux %s: %s", args[0], out)
		}
		return out, fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return out, nil
}
