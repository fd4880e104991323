package cmd

import (
	"fmt"
	"os"

	"timeline-cache/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "timeline-cache",
	Short: "Timeline cache and synchronization engine",
	Long: `timeline-cache normalizes Mastodon, Misskey, Bluesky and RSS responses into
one schema, merges them into a durable cache and serves paged timelines over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console encoding with ISO8601 timestamps reads better on a terminal.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding the .env file")
}
