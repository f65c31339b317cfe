// Package config provides configuration loading and validation for ocalt.
// It supports TOML configuration files with environment variable expansion,
// default values and validation that is fatal at startup.
//
// Configuration structure:
//   - [scheduler]: ledger file, logs directory, tmux session, polling and overlap policy
//   - [cli]: invocation contract of the external agent CLI
//   - [logging]: logging level, format and output
//   - [metrics]: Prometheus endpoint
//   - [relay]: inter-agent drop folder
//   - [channels]: Telegram and Discord adapters
//   - [[agents]] / [[agents.jobs]]: agents, their working directories and scheduled jobs
//
// Environment variables:
// Secrets and paths can reference environment variables using ${VAR} or
// ${VAR:default}. For example: token = "${TELEGRAM_BOT_TOKEN}"
package config

import "strings"

// Job modes.
const (
	ModeContinue = "continue"
	ModeFresh    = "fresh"
)

// Overlap policies describe what a second fire of a job that is still running does.
const (
	OverlapSkip  = "skip"
	OverlapQueue = "queue"
	OverlapAllow = "allow"
)

// Config represents the main application configuration.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	CLI       CLIConfig       `toml:"cli"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Relay     RelayConfig     `toml:"relay"`
	Channels  ChannelsConfig  `toml:"channels"`
	Agents    []AgentConfig   `toml:"agents"`
}

// SchedulerConfig представляет конфигурацию планировщика и раннера
type SchedulerConfig struct {
	StateFile             string `toml:"state_file"`
	LogsDir               string `toml:"logs_dir"`
	TmuxSession           string `toml:"tmux_session"`
	PollIntervalSeconds   int    `toml:"poll_interval_seconds"`
	DefaultTimeoutSeconds int    `toml:"default_timeout_seconds"`
	OverlapPolicy         string `toml:"overlap_policy"`
	CompletionMarker      string `toml:"completion_marker"`
	LogRetentionDays      int    `toml:"log_retention_days"` // 0 - логи не удаляются
}

// CLIConfig описывает контракт вызова внешнего агента
type CLIConfig struct {
	Binary           string `toml:"binary"`
	PromptFlag       string `toml:"prompt_flag"`
	ContinueFlag     string `toml:"continue_flag"`
	AllowedToolsFlag string `toml:"allowed_tools_flag"`
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// MetricsConfig представляет конфигурацию Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// RelayConfig представляет конфигурацию drop folder для обмена между агентами
type RelayConfig struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"`
	MaxAgeHours   int    `toml:"max_age_hours"`
	RetentionDays int    `toml:"retention_days"` // 0 - записи не удаляются
}

// ChannelsConfig представляет конфигурацию каналов
type ChannelsConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	Discord  DiscordConfig  `toml:"discord"`
}

// TelegramConfig представляет конфигурацию Telegram канала
type TelegramConfig struct {
	Enabled               bool     `toml:"enabled"`
	Token                 string   `toml:"token"`
	AllowedUsers          []string `toml:"allowed_users"`
	ChatID                string   `toml:"chat_id"`
	SendTimeoutSeconds    int      `toml:"send_timeout_seconds"`
	ReconnectDelaySeconds int      `toml:"reconnect_delay_seconds"`
	RoutingFile           string   `toml:"routing_file"`
	RoutingLimit          int      `toml:"routing_limit"`
}

// DiscordConfig представляет конфигурацию Discord канала
type DiscordConfig struct {
	Enabled               bool     `toml:"enabled"`
	Token                 string   `toml:"token"`
	GuildID               string   `toml:"guild_id"`
	CategoryID            string   `toml:"category_id"`
	AllowedUsers          []string `toml:"allowed_users"`
	ChannelMapFile        string   `toml:"channel_map_file"`
	RoutingFile           string   `toml:"routing_file"`
	RoutingLimit          int      `toml:"routing_limit"`
	ReconnectDelaySeconds int      `toml:"reconnect_delay_seconds"`
	MessagesPerSecond     float64  `toml:"messages_per_second"`
	APIBaseURL            string   `toml:"api_base_url"`
	GatewayURL            string   `toml:"gateway_url"`
}

// AgentConfig описывает агента: рабочую директорию и его задачи
type AgentConfig struct {
	Name           string      `toml:"name"`
	Workdir        string      `toml:"workdir"`
	Description    string      `toml:"description"`
	TimeoutSeconds *int        `toml:"timeout_seconds"`
	AllowedTools   *string     `toml:"allowed_tools"`
	SharedChannels []string    `toml:"shared_channels"`
	Jobs           []JobConfig `toml:"jobs"`
}

// JobConfig описывает одну задачу агента
type JobConfig struct {
	Name            string  `toml:"name"`
	Schedule        string  `toml:"schedule"`
	Mode            string  `toml:"mode"`
	Prompt          string  `toml:"prompt"`
	TimeoutSeconds  *int    `toml:"timeout_seconds"`
	AllowedTools    *string `toml:"allowed_tools"`
	SuppressIfMatch string  `toml:"suppress_if_match"`
	Telegram        bool    `toml:"telegram"`
	Discord         bool    `toml:"discord"`
	Interactive     bool    `toml:"interactive"`
	RelayChannel    string  `toml:"relay_channel"`
}

// Key returns the ledger key of the job, "agent/job".
func (j JobConfig) Key(agent string) string {
	return agent + "/" + j.Name
}

// Agent returns the agent with the given name.
func (c *Config) Agent(name string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// AgentNames returns agent names in configuration order.
func (c *Config) AgentNames() []string {
	names := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		names = append(names, a.Name)
	}
	return names
}

// FindJob looks a job up by "agent/job" or by bare job name. A bare name
// matches the first agent that owns a job with that name.
func (c *Config) FindJob(ref string) (AgentConfig, JobConfig, bool) {
	agentName, jobName := "", ref
	if a, j, ok := strings.Cut(ref, "/"); ok {
		agentName, jobName = a, j
	}
	for _, a := range c.Agents {
		if agentName != "" && a.Name != agentName {
			continue
		}
		for _, j := range a.Jobs {
			if j.Name == jobName {
				return a, j, true
			}
		}
	}
	return AgentConfig{}, JobConfig{}, false
}
