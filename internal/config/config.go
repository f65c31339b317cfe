package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aatumaykin/ocalt/internal/constants"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает TOML, применяет значения по умолчанию и раскрывает переменные окружения
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	expandEnvVars(&cfg)

	return &cfg, nil
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Scheduler.StateFile == "" {
		c.Scheduler.StateFile = constants.DefaultStateFile
	}
	if c.Scheduler.LogsDir == "" {
		c.Scheduler.LogsDir = constants.DefaultLogsDir
	}
	if c.Scheduler.TmuxSession == "" {
		c.Scheduler.TmuxSession = constants.DefaultTmuxSession
	}
	if c.Scheduler.PollIntervalSeconds == 0 {
		c.Scheduler.PollIntervalSeconds = int(constants.DefaultPollInterval.Seconds())
	}
	if c.Scheduler.DefaultTimeoutSeconds == 0 {
		c.Scheduler.DefaultTimeoutSeconds = constants.DefaultTimeoutSeconds
	}
	if c.Scheduler.OverlapPolicy == "" {
		c.Scheduler.OverlapPolicy = OverlapSkip
	}
	if c.Scheduler.CompletionMarker == "" {
		c.Scheduler.CompletionMarker = constants.DefaultCompletionMarker
	}

	if c.CLI.Binary == "" {
		c.CLI.Binary = "claude"
	}
	if c.CLI.PromptFlag == "" {
		c.CLI.PromptFlag = "-p"
	}
	if c.CLI.ContinueFlag == "" {
		c.CLI.ContinueFlag = "--continue"
	}
	if c.CLI.AllowedToolsFlag == "" {
		c.CLI.AllowedToolsFlag = "--allowedTools"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = constants.DefaultMetricsListen
	}

	if c.Relay.Dir == "" {
		c.Relay.Dir = constants.DefaultRelayDir
	}
	if c.Relay.MaxAgeHours == 0 {
		c.Relay.MaxAgeHours = constants.DefaultRelayMaxAgeHours
	}

	tg := &c.Channels.Telegram
	if tg.SendTimeoutSeconds == 0 {
		tg.SendTimeoutSeconds = int(constants.DefaultSendTimeout.Seconds())
	}
	if tg.ReconnectDelaySeconds == 0 {
		tg.ReconnectDelaySeconds = int(constants.DefaultReconnectDelay.Seconds())
	}
	if tg.RoutingFile == "" {
		tg.RoutingFile = constants.DefaultTelegramRoutingFile
	}
	if tg.RoutingLimit == 0 {
		tg.RoutingLimit = constants.DefaultRoutingLimit
	}
	if tg.ChatID == "" && len(tg.AllowedUsers) > 0 {
		tg.ChatID = tg.AllowedUsers[0]
	}

	dc := &c.Channels.Discord
	if dc.ChannelMapFile == "" {
		dc.ChannelMapFile = constants.DefaultDiscordChannelMapFile
	}
	if dc.RoutingFile == "" {
		dc.RoutingFile = constants.DefaultDiscordRoutingFile
	}
	if dc.RoutingLimit == 0 {
		dc.RoutingLimit = constants.DefaultRoutingLimit
	}
	if dc.ReconnectDelaySeconds == 0 {
		dc.ReconnectDelaySeconds = int(constants.DefaultReconnectDelay.Seconds())
	}
	if dc.MessagesPerSecond == 0 {
		dc.MessagesPerSecond = 1
	}
	if dc.APIBaseURL == "" {
		dc.APIBaseURL = "https://discord.com/api/v10"
	}
	if dc.GatewayURL == "" {
		dc.GatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}

	for i := range c.Agents {
		for j := range c.Agents[i].Jobs {
			if c.Agents[i].Jobs[j].Mode == "" {
				c.Agents[i].Jobs[j].Mode = ModeContinue
			}
		}
	}
}

// expandEnvVars расширяет переменные окружения в секретах и путях
func expandEnvVars(c *Config) {
	c.Channels.Telegram.Token = expandEnv(c.Channels.Telegram.Token)
	c.Channels.Telegram.ChatID = expandEnv(c.Channels.Telegram.ChatID)
	c.Channels.Discord.Token = expandEnv(c.Channels.Discord.Token)
	c.Channels.Discord.GuildID = expandEnv(c.Channels.Discord.GuildID)

	for _, p := range []*string{
		&c.Scheduler.StateFile,
		&c.Scheduler.LogsDir,
		&c.Relay.Dir,
		&c.Channels.Telegram.RoutingFile,
		&c.Channels.Discord.RoutingFile,
		&c.Channels.Discord.ChannelMapFile,
	} {
		*p = expandHome(expandEnv(*p))
	}

	for i, u := range c.Channels.Telegram.AllowedUsers {
		c.Channels.Telegram.AllowedUsers[i] = expandEnv(u)
	}
	for i, u := range c.Channels.Discord.AllowedUsers {
		c.Channels.Discord.AllowedUsers[i] = expandEnv(u)
	}
}

// expandEnv расширяет переменную окружения формата ${VAR} или ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	rest := s[end+1:]
	if key, defaultVal, ok := strings.Cut(content, ":"); ok {
		if val := os.Getenv(key); val != "" {
			return val + rest
		}
		return defaultVal + rest
	}

	return os.Getenv(content) + rest
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
