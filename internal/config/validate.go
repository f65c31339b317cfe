package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ErrNoJobs возвращается, когда в конфигурации нет ни одной задачи
var ErrNoJobs = errors.New("no jobs configured: at least one [[agents.jobs]] entry is required")

// scheduleParser принимает 5 и 6 полей (секунды опциональны) и дескрипторы вида @hourly
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// nameForbidden: "/" разделяет agent/job, ":" и "." разбирает tmux в session:window.pane
const nameForbidden = "/:. "

// ParseSchedule разбирает cron выражение задачи
func ParseSchedule(expr string) (cron.Schedule, error) {
	return scheduleParser.Parse(expr)
}

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errs []error

	// Проверка агентов и задач
	jobCount := 0
	agentNames := make(map[string]bool)
	windows := make(map[string]string)
	for i, agent := range c.Agents {
		prefix := fmt.Sprintf("agents[%d]", i)
		if agent.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			prefix = "agents." + agent.Name
			if agentNames[agent.Name] {
				errs = append(errs, fmt.Errorf("duplicate agent name: %s", agent.Name))
			}
			agentNames[agent.Name] = true
			if strings.ContainsAny(agent.Name, nameForbidden) {
				errs = append(errs, fmt.Errorf("%s.name must not contain '/', ':', '.' or spaces", prefix))
			}
		}

		if agent.Workdir == "" {
			errs = append(errs, fmt.Errorf("%s.workdir is required", prefix))
		}
		if agent.TimeoutSeconds != nil && *agent.TimeoutSeconds < 1 {
			errs = append(errs, fmt.Errorf("%s.timeout_seconds must be >= 1", prefix))
		}

		jobNames := make(map[string]bool)
		for j, job := range agent.Jobs {
			jobCount++
			jobPrefix := fmt.Sprintf("%s.jobs[%d]", prefix, j)
			if job.Name == "" {
				errs = append(errs, fmt.Errorf("%s.name is required", jobPrefix))
			} else {
				jobPrefix = prefix + ".jobs." + job.Name
				if jobNames[job.Name] {
					errs = append(errs, fmt.Errorf("duplicate job name %s for agent %s", job.Name, agent.Name))
				}
				jobNames[job.Name] = true
				if strings.ContainsAny(job.Name, nameForbidden) {
					errs = append(errs, fmt.Errorf("%s.name must not contain '/', ':', '.' or spaces", jobPrefix))
				}
				// окно tmux и лог называются <agent>-<job>
				if agent.Name != "" {
					window := agent.Name + "-" + job.Name
					if other, ok := windows[window]; ok {
						errs = append(errs, fmt.Errorf("jobs %s and %s/%s share window and log name %s", other, agent.Name, job.Name, window))
					} else {
						windows[window] = agent.Name + "/" + job.Name
					}
				}
			}

			if job.Schedule == "" {
				errs = append(errs, fmt.Errorf("%s.schedule is required", jobPrefix))
			} else if _, err := ParseSchedule(job.Schedule); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s.schedule %q: %w", jobPrefix, job.Schedule, err))
			}

			if job.Mode != ModeContinue && job.Mode != ModeFresh {
				errs = append(errs, fmt.Errorf("invalid %s.mode: %s (expected: continue, fresh)", jobPrefix, job.Mode))
			}
			if strings.TrimSpace(job.Prompt) == "" {
				errs = append(errs, fmt.Errorf("%s.prompt is required", jobPrefix))
			}
			if job.TimeoutSeconds != nil && *job.TimeoutSeconds < 1 {
				errs = append(errs, fmt.Errorf("%s.timeout_seconds must be >= 1", jobPrefix))
			}
		}
	}
	if jobCount == 0 {
		errs = append(errs, ErrNoJobs)
	}

	// Проверка планировщика
	switch c.Scheduler.OverlapPolicy {
	case OverlapSkip, OverlapQueue, OverlapAllow:
	default:
		errs = append(errs, fmt.Errorf("invalid scheduler.overlap_policy: %s (expected: skip, queue, allow)", c.Scheduler.OverlapPolicy))
	}
	if c.Scheduler.PollIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("scheduler.poll_interval_seconds must be >= 1"))
	}
	if c.Scheduler.DefaultTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("scheduler.default_timeout_seconds must be >= 1"))
	}
	if strings.TrimSpace(c.Scheduler.CompletionMarker) == "" || strings.ContainsAny(c.Scheduler.CompletionMarker, "\n'") {
		errs = append(errs, fmt.Errorf("scheduler.completion_marker must be a single line without quotes"))
	}

	if c.Scheduler.LogRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("scheduler.log_retention_days must be >= 0"))
	}

	if c.CLI.Binary == "" {
		errs = append(errs, fmt.Errorf("cli.binary is required"))
	}

	// Проверка Telegram канала
	if c.Channels.Telegram.Enabled {
		tg := c.Channels.Telegram
		if tg.Token == "" {
			errs = append(errs, fmt.Errorf("channels.telegram.token is required when telegram is enabled"))
		} else if err := validateTelegramToken(tg.Token); err != nil {
			errs = append(errs, err)
		}
		if len(tg.AllowedUsers) == 0 {
			errs = append(errs, fmt.Errorf("channels.telegram.allowed_users cannot be empty when telegram is enabled"))
		}
		if tg.ChatID == "" {
			errs = append(errs, fmt.Errorf("channels.telegram.chat_id is required when telegram is enabled"))
		}
	}

	// Проверка Discord канала
	if c.Channels.Discord.Enabled {
		dc := c.Channels.Discord
		if dc.Token == "" {
			errs = append(errs, fmt.Errorf("channels.discord.token is required when discord is enabled"))
		}
		if dc.GuildID == "" {
			errs = append(errs, fmt.Errorf("channels.discord.guild_id is required when discord is enabled"))
		}
		if len(dc.AllowedUsers) == 0 {
			errs = append(errs, fmt.Errorf("channels.discord.allowed_users cannot be empty when discord is enabled"))
		}
		if dc.MessagesPerSecond < 0 {
			errs = append(errs, fmt.Errorf("channels.discord.messages_per_second must be positive"))
		}
	}

	// Проверка logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if c.Relay.MaxAgeHours < 1 {
		errs = append(errs, fmt.Errorf("relay.max_age_hours must be >= 1"))
	}
	if c.Relay.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("relay.retention_days must be >= 0"))
	}

	return errs
}

func validateTelegramToken(token string) error {
	botID, botToken, ok := strings.Cut(token, ":")
	if !ok || strings.Contains(botToken, ":") {
		return fmt.Errorf("telegram token has invalid format (expected format: <bot_id>:<token>, got: %s)", maskSecret(token))
	}

	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d digits)", len(botID))
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}

	if len(botToken) < 10 || len(botToken) > 50 {
		return fmt.Errorf("telegram token has invalid token length (expected 10-50 characters, got %d)", len(botToken))
	}

	return nil
}
