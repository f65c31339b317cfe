package agentcli

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/logger"
)

var testBuilder = Builder{
	Binary:           "claude",
	PromptFlag:       "-p",
	ContinueFlag:     "--continue",
	AllowedToolsFlag: "--allowedTools",
}

func strPtr(s string) *string { return &s }

func TestArgs_Modes(t *testing.T) {
	tests := []struct {
		name  string
		agent config.AgentConfig
		job   config.JobConfig
		want  []string
	}{
		{
			name: "fresh never continues",
			job:  config.JobConfig{Mode: config.ModeFresh, AllowedTools: strPtr("Read")},
			want: []string{"claude", "-p", "hi", "--allowedTools", "Read"},
		},
		{
			name: "continue always continues",
			job:  config.JobConfig{Mode: config.ModeContinue},
			want: []string{"claude", "-p", "hi", "--continue"},
		},
		{
			name:  "agent tools as fallback",
			agent: config.AgentConfig{AllowedTools: strPtr("Bash,Read")},
			job:   config.JobConfig{Mode: config.ModeContinue},
			want:  []string{"claude", "-p", "hi", "--continue", "--allowedTools", "Bash,Read"},
		},
		{
			name:  "job tools win",
			agent: config.AgentConfig{AllowedTools: strPtr("Bash,Read")},
			job:   config.JobConfig{Mode: config.ModeFresh, AllowedTools: strPtr("Read")},
			want:  []string{"claude", "-p", "hi", "--allowedTools", "Read"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testBuilder.Args(tt.agent, tt.job, "hi"))
		})
	}
}

func TestContinueArgs(t *testing.T) {
	agent := config.AgentConfig{AllowedTools: strPtr("Read")}
	assert.Equal(t,
		[]string{"claude", "-p", "status?", "--continue", "--allowedTools", "Read"},
		testBuilder.ContinueArgs(agent, "status?"))
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "'plain'"},
		{"it's", `'it'\''s'`},
		{"$(rm -rf /)", "'$(rm -rf /)'"},
		{"a\nb", "'a\nb'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShellQuote(tt.in))
	}
}

// Кавычки должны переживать реальный shell без изменений
func TestShellCommand_RoundTripsThroughShell(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	nasty := "it's \"quoted\" $HOME `id` ; echo pwned\nsecond line"

	cmd := ShellCommand(dir, []string{"printf", "%s", nasty})
	out, err := exec.Command("sh", "-c", cmd).Output()
	require.NoError(t, err)
	assert.Equal(t, nasty, string(out))
}

func TestWrap(t *testing.T) {
	got := Wrap("cd '/w' && 'claude'", "/logs/a.log", "DONE", false)
	assert.Equal(t, "{ cd '/w' && 'claude' ; } > '/logs/a.log' 2>&1; echo 'DONE' >> '/logs/a.log'", got)

	got = Wrap("cd '/w' && 'claude'", "/logs/a.log", "DONE", true)
	assert.Equal(t, "{ cd '/w' && 'claude' ; } 2>&1 | tee '/logs/a.log'", got)
	assert.NotContains(t, got, "DONE")
}

func TestWrap_MarkerAfterFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	logPath := filepath.Join(t.TempDir(), "job.log")

	cmd := Wrap(ShellCommand(t.TempDir(), []string{"sh", "-c", "echo out; echo err >&2; exit 3"}), logPath, "__DONE__", false)
	require.NoError(t, exec.Command("sh", "-c", cmd).Run())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.ElementsMatch(t, []string{"out", "err", "__DONE__"}, lines)
	assert.Equal(t, "__DONE__", lines[len(lines)-1])
}

func TestInvoker_Continue(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	log := logger.NewNop()
	agent := config.AgentConfig{Name: "ops"}
	dir := t.TempDir()

	// sh -c '<prompt>' --continue: --continue становится $0
	inv := NewInvoker(Builder{Binary: "sh", PromptFlag: "-c", ContinueFlag: "--continue"}, log)

	out, err := inv.Continue(context.Background(), agent, dir, "pwd; echo answer", 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, out, "answer")
	assert.Contains(t, out, filepath.Base(dir))

	_, err = inv.Continue(context.Background(), agent, dir, "echo broken >&2; exit 2", 5*time.Second)
	assert.ErrorContains(t, err, "broken")

	_, err = inv.Continue(context.Background(), agent, dir, "sleep 5", 100*time.Millisecond)
	assert.ErrorContains(t, err, "did not answer")

	_, err = inv.Continue(context.Background(), agent, dir, "   ", time.Second)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}
