package cmd

import (
	"timeline-cache/core/model"
	"timeline-cache/feature/timeline"

	"github.com/spf13/cobra"
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <account> <bucket>",
	Short: "Print the cached page of a bucket as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := model.ParseKey(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		ascending, _ := cmd.Flags().GetBool("ascending")

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := timeline.NewService(rt.engine, rt.broker, rt.log, rt.cfg.Timeline)
		page, err := svc.Snapshot(ctx, model.BucketRef{Account: account, Name: args[1]}, timeline.ObserveOptions{
			Limit:     limit,
			Ascending: ascending,
		})
		if err != nil {
			return err
		}
		return printJSON(page)
	},
}

func init() {
	RootCmd.AddCommand(showCmd)
	showCmd.Flags().Int("limit", 0, "Maximum number of items, 0 uses the configured default")
	showCmd.Flags().Bool("ascending", false, "Oldest items first")
}
