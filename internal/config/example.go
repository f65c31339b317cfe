package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Example is the config written by `ocalt config init`.
const Example = `# ocalt configuration

[scheduler]
state_file = "~/.ocalt/state.json"
logs_dir = "~/.ocalt/logs"
tmux_session = "ocalt"
poll_interval_seconds = 3
default_timeout_seconds = 120
overlap_policy = "skip"   # skip | queue | allow
log_retention_days = 14   # 0 keeps job logs forever

[cli]
binary = "claude"
prompt_flag = "-p"
continue_flag = "--continue"
allowed_tools_flag = "--allowedTools"

[logging]
level = "info"
format = "text"
output = "stdout"

[metrics]
enabled = false
listen = "127.0.0.1:9464"

[relay]
enabled = true
dir = "~/.ocalt/dropbox"
max_age_hours = 24
retention_days = 7

[channels.telegram]
enabled = false
token = "${TELEGRAM_BOT_TOKEN}"
allowed_users = ["${TELEGRAM_USER_ID}"]

[channels.discord]
enabled = false
token = "${DISCORD_BOT_TOKEN}"
guild_id = "${DISCORD_GUILD_ID}"
allowed_users = ["${DISCORD_USER_ID}"]

[[agents]]
name = "ops"
workdir = "~/agents/ops"
description = "Keeps an eye on the servers"
timeout_seconds = 300
shared_channels = ["general"]

  [[agents.jobs]]
  name = "heartbeat"
  schedule = "*/30 * * * *"
  mode = "continue"
  prompt = "Check disk, memory and failed services. Answer ALL_CLEAR if nothing needs attention."
  timeout_seconds = 60
  suppress_if_match = "ALL_CLEAR"
  telegram = true

  [[agents.jobs]]
  name = "nightly"
  schedule = "0 3 * * *"
  mode = "fresh"
  prompt = "Summarise yesterday's logs and post anything unusual."
  relay_channel = "general"
  telegram = true
  discord = true
`

// WriteExample создаёт пример конфигурации. Существующий файл не перезаписывается.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(Example), 0644)
}
