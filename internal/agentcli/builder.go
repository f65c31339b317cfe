// Package agentcli builds invocations of the external agent CLI and runs
// direct (synchronous) invocations for routed chat replies.
package agentcli

import (
	"strings"

	"github.com/aatumaykin/ocalt/internal/config"
)

// Builder знает контракт вызова CLI агента: бинарь и имена флагов
type Builder struct {
	Binary           string
	PromptFlag       string
	ContinueFlag     string
	AllowedToolsFlag string
}

// NewBuilder creates a Builder from the [cli] section.
func NewBuilder(cfg config.CLIConfig) Builder {
	return Builder{
		Binary:           cfg.Binary,
		PromptFlag:       cfg.PromptFlag,
		ContinueFlag:     cfg.ContinueFlag,
		AllowedToolsFlag: cfg.AllowedToolsFlag,
	}
}

// Args returns the argument list (binary first) for a scheduled job.
// prompt is the final prompt, possibly already augmented with shared context.
func (b Builder) Args(agent config.AgentConfig, job config.JobConfig, prompt string) []string {
	return b.args(prompt, job.Mode != config.ModeFresh, config.ResolveAllowedTools(agent, &job))
}

// ContinueArgs returns the argument list for a routed reply. Replies always
// continue the agent's session.
func (b Builder) ContinueArgs(agent config.AgentConfig, prompt string) []string {
	return b.args(prompt, true, config.ResolveAllowedTools(agent, nil))
}

func (b Builder) args(prompt string, cont bool, tools string) []string {
	args := []string{b.Binary, b.PromptFlag, prompt}
	if cont {
		args = append(args, b.ContinueFlag)
	}
	if tools != "" {
		args = append(args, b.AllowedToolsFlag, tools)
	}
	return args
}

// ShellQuote quotes s for a POSIX shell. The result is always single-quoted;
// embedded single quotes are closed, escaped and reopened.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// ShellCommand returns a command line that changes to workdir and runs args,
// every argument quoted.
func ShellCommand(workdir string, args []string) string {
	var sb strings.Builder
	sb.WriteString("cd ")
	sb.WriteString(ShellQuote(workdir))
	sb.WriteString(" &&")
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(ShellQuote(a))
	}
	return sb.String()
}

// Wrap redirects the combined output of cmd into logPath. Unless interactive,
// the completion marker is appended after cmd exits, whatever its status.
// Interactive jobs keep their output visible in the window through tee and
// get no marker.
func Wrap(cmd, logPath, marker string, interactive bool) string {
	if interactive {
		return "{ " + cmd + " ; } 2>&1 | tee " + ShellQuote(logPath)
	}
	return "{ " + cmd + " ; } > " + ShellQuote(logPath) + " 2>&1; echo " + ShellQuote(marker) + " >> " + ShellQuote(logPath)
}
