package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/state"
)

func TestCommandStructure(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{"version", "config", "serve", "status", "trigger", "logs", "relay"} {
		assert.True(t, found[name], "command %q not registered", name)
	}

	sub := func(parent string) map[string]bool {
		out := make(map[string]bool)
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() != parent {
				continue
			}
			for _, c := range cmd.Commands() {
				out[c.Name()] = true
			}
		}
		return out
	}
	assert.Equal(t, map[string]bool{"validate": true, "init": true}, sub("config"))
	assert.Equal(t, map[string]bool{"post": true, "read": true}, sub("relay"))
}

func TestPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()
	require.NotNil(t, flags.Lookup("config"))
	require.NotNil(t, flags.Lookup("env"))
	require.NotNil(t, flags.Lookup("log-level"))
	assert.Equal(t, "c", flags.Lookup("config").Shorthand)

	require.NoError(t, logsCmd.ParseFlags([]string{"-n", "5"}))
	assert.Equal(t, 5, logsLines)
}

func TestLatestLog(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"ops-heartbeat-20260301-120000.log",
		"ops-heartbeat-20260302-090000.log",
		"ops-heartbeat-20260301-235959.log",
		"ops-heartbeat-x-20260309-000000.log",
		"ops-digest-20260309-000000.log",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	path, err := latestLog(dir, logPattern("ops-heartbeat"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ops-heartbeat-20260302-090000.log"), path,
		"logs of job heartbeat-x are not picked up")

	path, err = latestLog(dir, logPattern(".+-digest"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ops-digest-20260309-000000.log"), path)

	path, err = latestLog(dir, logPattern(".+-missing"))
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = latestLog(filepath.Join(dir, "none"), logPattern("ops-heartbeat"))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "c\nd", tail("a\nb\nc\nd\n", 2))
	assert.Equal(t, "a\nb", tail("a\nb\n", 10))
	assert.Equal(t, "a\nb", tail("a\nb", 0))
}

func TestRenderStatus(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[[agents]]
name = "ops"
workdir = "/tmp/ops"

[[agents.jobs]]
name = "heartbeat"
schedule = "*/30 * * * *"
prompt = "check"

[[agents.jobs]]
name = "digest"
schedule = "0 9 * * *"
mode = "fresh"
prompt = "summarise"
`))
	require.NoError(t, err)

	ledger := state.Ledger{
		"ops/heartbeat": {
			LastRun:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			LastStatus:   state.StatusTimeout,
			LastDuration: 42.5,
			RunCount:     7,
		},
	}

	out := renderStatus(cfg, ledger, time.Date(2026, 3, 1, 12, 7, 0, 0, time.UTC))
	assert.Contains(t, out, "AGENT")
	assert.Contains(t, out, "heartbeat")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "42.5s")
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "digest")
	assert.Contains(t, out, "fresh")
	assert.Contains(t, out, "never")
}
