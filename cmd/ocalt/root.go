package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
	"github.com/aatumaykin/ocalt/internal/logger"
)

var (
	configPath string
	envPath    string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ocalt",
	Short: "ocalt - cron scheduler and chat router for coding agents",
	Long: `ocalt runs a coding-agent CLI on cron schedules, one tmux window per run,
records every run in a JSON ledger and routes agent output to Telegram and Discord.
Chat replies are routed back to the agent that wrote the message.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultConfig := constants.DefaultConfigPath
	if v := os.Getenv("OCALT_CONFIG"); v != "" {
		defaultConfig = v
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "Path to config file (env OCALT_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", constants.DefaultEnvPath, "Path to .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(relayCmd)
}

// loadConfig загружает .env и конфигурацию; при ошибках печатает диагностику и завершает процесс
func loadConfig() *config.Config {
	if err := config.LoadEnvOptional(envPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load %s: %v\n", envPath, err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, constants.MsgConfigLoadFailed, err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		fmt.Fprint(os.Stderr, constants.MsgConfigInvalid)
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %v\n", e)
		}
		os.Exit(1)
	}
	return cfg
}

// newLogger создаёт logger из секции [logging]
func newLogger(cfg *config.Config) *logger.Logger {
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

// quietLogger для коротких команд: только предупреждения и ошибки в stderr
func quietLogger() *logger.Logger {
	log, err := logger.New(logger.Config{Level: "warn", Format: "text", Output: "stderr"})
	if err != nil {
		return logger.NewNop()
	}
	return log
}
