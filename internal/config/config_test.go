package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/ocalt/internal/constants"
)

const minimalConfig = `
[[agents]]
name = "ops"
workdir = "/srv/ops"

  [[agents.jobs]]
  name = "heartbeat"
  schedule = "*/5 * * * *"
  prompt = "check"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultTmuxSession, cfg.Scheduler.TmuxSession)
	assert.Equal(t, 3, cfg.Scheduler.PollIntervalSeconds)
	assert.Equal(t, 120, cfg.Scheduler.DefaultTimeoutSeconds)
	assert.Equal(t, OverlapSkip, cfg.Scheduler.OverlapPolicy)
	assert.Equal(t, constants.DefaultCompletionMarker, cfg.Scheduler.CompletionMarker)
	assert.Equal(t, "claude", cfg.CLI.Binary)
	assert.Equal(t, "--continue", cfg.CLI.ContinueFlag)
	assert.Equal(t, ModeContinue, cfg.Agents[0].Jobs[0].Mode)
	assert.Equal(t, 500, cfg.Channels.Telegram.RoutingLimit)
	assert.Equal(t, 500, cfg.Channels.Discord.RoutingLimit)
	assert.False(t, strings.HasPrefix(cfg.Scheduler.StateFile, "~"), "home must be expanded")

	assert.Empty(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocalt.toml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, cfg.AgentNames())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Parse([]byte("[[agents]\nname="))
	assert.Error(t, err)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("OCALT_TEST_TOKEN", "123456:abcdefghijklmnop")
	data := minimalConfig + `
[channels.telegram]
enabled = true
token = "${OCALT_TEST_TOKEN}"
allowed_users = ["42"]
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "123456:abcdefghijklmnop", cfg.Channels.Telegram.Token)
	assert.Equal(t, "42", cfg.Channels.Telegram.ChatID, "chat_id defaults to the first allowed user")
	assert.Empty(t, cfg.Validate())
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("OCALT_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${OCALT_SET}", "value"},
		{"${OCALT_UNSET_VAR}", ""},
		{"${OCALT_UNSET_VAR:fallback}", "fallback"},
		{"${OCALT_SET:fallback}", "value"},
		{"${OCALT_SET}/sub", "value/sub"},
		{"${broken", "${broken"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnv(tt.in), tt.in)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "no jobs",
			config:  "[logging]\nlevel = \"info\"\n",
			wantErr: ErrNoJobs.Error(),
		},
		{
			name: "invalid cron",
			config: `
[[agents]]
name = "ops"
workdir = "/srv/ops"
  [[agents.jobs]]
  name = "bad"
  schedule = "every minute"
  prompt = "x"
`,
			wantErr: "invalid agents.ops.jobs.bad.schedule",
		},
		{
			name: "invalid mode",
			config: `
[[agents]]
name = "ops"
workdir = "/srv/ops"
  [[agents.jobs]]
  name = "j"
  schedule = "@hourly"
  mode = "resume"
  prompt = "x"
`,
			wantErr: "expected: continue, fresh",
		},
		{
			name: "duplicate agent",
			config: minimalConfig + `
[[agents]]
name = "ops"
workdir = "/srv/other"
`,
			wantErr: "duplicate agent name: ops",
		},
		{
			name: "duplicate job",
			config: minimalConfig + `
  [[agents.jobs]]
  name = "heartbeat"
  schedule = "0 * * * *"
  prompt = "again"
`,
			wantErr: "duplicate job name heartbeat",
		},
		{
			name: "dot in agent name",
			config: `
[[agents]]
name = "ops.v2"
workdir = "/srv/ops"
  [[agents.jobs]]
  name = "j"
  schedule = "@hourly"
  prompt = "x"
`,
			wantErr: "agents.ops.v2.name must not contain",
		},
		{
			name: "dot in job name",
			config: minimalConfig + `
  [[agents.jobs]]
  name = "daily.report"
  schedule = "@daily"
  prompt = "x"
`,
			wantErr: "jobs.daily.report.name must not contain",
		},
		{
			name: "window name collision",
			config: `
[[agents]]
name = "a-b"
workdir = "/srv/ab"
  [[agents.jobs]]
  name = "c"
  schedule = "@hourly"
  prompt = "x"

[[agents]]
name = "a"
workdir = "/srv/a"
  [[agents.jobs]]
  name = "b-c"
  schedule = "@hourly"
  prompt = "x"
`,
			wantErr: "share window and log name a-b-c",
		},
		{
			name:    "telegram without token",
			config:  minimalConfig + "\n[channels.telegram]\nenabled = true\nallowed_users = [\"1\"]\n",
			wantErr: "channels.telegram.token is required",
		},
		{
			name:    "telegram bad token",
			config:  minimalConfig + "\n[channels.telegram]\nenabled = true\ntoken = \"nope\"\nallowed_users = [\"1\"]\n",
			wantErr: "telegram token has invalid format",
		},
		{
			name:    "discord without guild",
			config:  minimalConfig + "\n[channels.discord]\nenabled = true\ntoken = \"t\"\nallowed_users = [\"1\"]\n",
			wantErr: "channels.discord.guild_id is required",
		},
		{
			name:    "bad overlap policy",
			config:  minimalConfig + "\n[scheduler]\noverlap_policy = \"drop\"\n",
			wantErr: "invalid scheduler.overlap_policy",
		},
		{
			name:    "bad log level",
			config:  minimalConfig + "\n[logging]\nlevel = \"loud\"\n",
			wantErr: "invalid logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.config))
			require.NoError(t, err)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)
			assert.Contains(t, errors.Join(errs...).Error(), tt.wantErr)
		})
	}
}

func TestValidate_NoJobsSentinel(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	errs := cfg.Validate()
	assert.True(t, errors.Is(errors.Join(errs...), ErrNoJobs))
}

func TestParseSchedule(t *testing.T) {
	valid := []string{"* * * * *", "*/15 9-17 * * 1-5", "30 */5 * * * *", "@daily", "@every 1h"}
	for _, expr := range valid {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	invalid := []string{"", "* * *", "61 * * * *", "tomorrow"}
	for _, expr := range invalid {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestFindJob(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + `
[[agents]]
name = "dev"
workdir = "/srv/dev"
  [[agents.jobs]]
  name = "heartbeat"
  schedule = "@hourly"
  prompt = "dev check"
`))
	require.NoError(t, err)

	agent, job, ok := cfg.FindJob("dev/heartbeat")
	require.True(t, ok)
	assert.Equal(t, "dev", agent.Name)
	assert.Equal(t, "dev check", job.Prompt)

	agent, _, ok = cfg.FindJob("heartbeat")
	require.True(t, ok)
	assert.Equal(t, "ops", agent.Name, "bare name matches the first owner")

	_, _, ok = cfg.FindJob("ops/missing")
	assert.False(t, ok)

	assert.Equal(t, "dev/heartbeat", job.Key("dev"))
}

func TestResolve(t *testing.T) {
	five, ten := 5, 10

	assert.Equal(t, 5, Resolve(&five, &ten, 120))
	assert.Equal(t, 10, Resolve(nil, &ten, 120))
	assert.Equal(t, 120, Resolve[int](nil, nil, 120))

	agent := AgentConfig{TimeoutSeconds: &ten}
	job := JobConfig{TimeoutSeconds: &five}
	assert.Equal(t, 5*time.Second, ResolveTimeout(agent, &job, 120))
	assert.Equal(t, 10*time.Second, ResolveTimeout(agent, nil, 120))
	assert.Equal(t, 120*time.Second, ResolveTimeout(AgentConfig{}, &JobConfig{}, 120))

	read, all := "Read", "Read,Write,Bash"
	assert.Equal(t, "Read", ResolveAllowedTools(AgentConfig{AllowedTools: &all}, &JobConfig{AllowedTools: &read}))
	assert.Equal(t, all, ResolveAllowedTools(AgentConfig{AllowedTools: &all}, &JobConfig{}))
	assert.Equal(t, "", ResolveAllowedTools(AgentConfig{}, nil))
}

func TestExample_IsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocalt.toml")
	require.NoError(t, WriteExample(path))
	assert.Error(t, WriteExample(path), "existing file must not be overwritten")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())
	assert.Len(t, cfg.Agents[0].Jobs, 2)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n\nOCALT_ENV_A=one\nexport OCALT_ENV_B=\"two words\"\nOCALT_ENV_PRESET=file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("OCALT_ENV_PRESET", "process")
	t.Setenv("OCALT_ENV_A", "")
	os.Unsetenv("OCALT_ENV_A")
	t.Setenv("OCALT_ENV_B", "")
	os.Unsetenv("OCALT_ENV_B")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "one", os.Getenv("OCALT_ENV_A"))
	assert.Equal(t, "two words", os.Getenv("OCALT_ENV_B"))
	assert.Equal(t, "process", os.Getenv("OCALT_ENV_PRESET"))

	assert.NoError(t, LoadEnvOptional(filepath.Join(t.TempDir(), "absent.env")))
	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "123456:abcd********mnop", MaskToken("123456:abcdefghijklmnop"))
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "", maskSecret(""))
}
