// Package workspace resolves agent working directories and provisions them.
//
// Every agent is bound to one working directory. Before the first scheduled
// run the directory is created together with an introductory instructions
// file (CLAUDE.md). An existing file is never overwritten.
//
// Example usage:
//
//	p := workspace.NewProvisioner(log)
//	for _, agent := range cfg.Agents {
//	    if _, err := p.Ensure(agent); err != nil {
//	        log.Error("failed to provision workspace", err)
//	    }
//	}
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
)

// ResolvePath expands a user-relative working directory (~, ~/x, relative
// paths) to an absolute path.
func ResolvePath(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("path is empty")
	}

	path := expandHome(dir)
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", dir, err)
	}
	return abs, nil
}

// Provisioner creates agent working directories and instruction files.
type Provisioner struct {
	logger *logger.Logger
}

// NewProvisioner creates a new Provisioner.
func NewProvisioner(log *logger.Logger) *Provisioner {
	return &Provisioner{logger: log}
}

// Ensure creates the agent workdir and its instructions file if absent and
// returns the absolute workdir.
func (p *Provisioner) Ensure(agent config.AgentConfig) (string, error) {
	dir, err := ResolvePath(agent.Workdir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(dir)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("workdir exists but is not a directory: %s", dir)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create workdir %s: %w", dir, err)
		}
		p.logger.Info("workspace created",
			logger.Field{Key: "agent", Value: agent.Name},
			logger.Field{Key: "path", Value: dir})
	case err != nil:
		return "", fmt.Errorf("failed to access workdir %s: %w", dir, err)
	}

	file := filepath.Join(dir, constants.AgentInstructionsFile)
	// O_EXCL: существующий файл не трогаем
	f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return dir, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", file, err)
	}
	defer f.Close()

	if _, err := f.WriteString(Instructions(agent.Name, agent.Description)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	p.logger.Info("instructions file created",
		logger.Field{Key: "agent", Value: agent.Name},
		logger.Field{Key: "path", Value: file})

	return dir, nil
}

// EnsureAll provisions every agent. Failures are returned per agent; the
// remaining agents are still provisioned.
func (p *Provisioner) EnsureAll(agents []config.AgentConfig) map[string]error {
	failed := make(map[string]error)
	for _, agent := range agents {
		if _, err := p.Ensure(agent); err != nil {
			failed[agent.Name] = err
		}
	}
	return failed
}

// expandHome expands ~ to the user's home directory.
// If the path doesn't start with ~/, it's returned unchanged.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' && (len(path) == 1 || path[1] == '/') {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
