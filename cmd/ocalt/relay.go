package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/ocalt/internal/relay"
)

var (
	relayFrom    string
	relayChannel string
	relayMaxAge  int
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Post to and read the inter-agent drop folder",
}

var relayPostCmd = &cobra.Command{
	Use:   "post <message>",
	Short: "Post a message to a drop folder channel",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		df := relay.New(cfg.Relay.Dir, quietLogger())

		path, err := df.Post(relayFrom, relayChannel, strings.Join(args, " "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to post: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ posted to %s: %s\n", relayChannel, path)
	},
}

var relayReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Print recent messages of a drop folder channel",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		df := relay.New(cfg.Relay.Dir, quietLogger())

		maxAge := relayMaxAge
		if maxAge <= 0 {
			maxAge = cfg.Relay.MaxAgeHours
		}
		records, err := df.Read(relayChannel, maxAge)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to read: %v\n", err)
			os.Exit(1)
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintf(out, "No messages in %s for the last %dh\n", relayChannel, maxAge)
			return
		}
		for _, r := range records {
			fmt.Fprintf(out, "── %s · %s\n%s\n\n", r.From, r.PostedAt.Local().Format("2006-01-02 15:04"), r.Body)
		}
	},
}

func init() {
	relayPostCmd.Flags().StringVar(&relayFrom, "from", "", "Sender name")
	relayPostCmd.Flags().StringVar(&relayChannel, "channel", "", "Channel name")
	_ = relayPostCmd.MarkFlagRequired("from")
	_ = relayPostCmd.MarkFlagRequired("channel")

	relayReadCmd.Flags().StringVar(&relayChannel, "channel", "", "Channel name")
	relayReadCmd.Flags().IntVar(&relayMaxAge, "max-age", 0, "Only messages newer than this many hours (default relay.max_age_hours)")
	_ = relayReadCmd.MarkFlagRequired("channel")

	relayCmd.AddCommand(relayPostCmd)
	relayCmd.AddCommand(relayReadCmd)
}
