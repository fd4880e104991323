package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the cache tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		// bootstrap migrates before returning.
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		rt.log.Info("Cache schema is up to date", zap.String("driver", rt.cfg.Database.Driver))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
