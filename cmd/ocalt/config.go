package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/ocalt/internal/config"
	"github.com/aatumaykin/ocalt/internal/constants"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Validate the configuration or write an example one.`,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		jobs := 0
		for _, a := range cfg.Agents {
			jobs += len(a.Jobs)
		}
		fmt.Fprintf(cmd.OutOrStdout(), constants.MsgConfigValid, len(cfg.Agents), jobs)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write an example configuration",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := configPath
		if len(args) > 0 {
			path = args[0]
		}
		if err := config.WriteExample(path); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Example config written to %s\n", path)
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
}
