package cmd

import (
	"fmt"

	"timeline-cache/core/model"
	"timeline-cache/feature/snapshot"

	"github.com/spf13/cobra"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export and import account snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func snapshotService(rt *deps) (*snapshot.Service, error) {
	client, err := rt.objectStorage()
	if err != nil {
		return nil, err
	}
	return snapshot.NewService(client, rt.cfg.Storage, rt.store, rt.log, rt.cfg.Snapshot), nil
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export <account>",
	Short: "Write the cached rows of an account to object storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := model.ParseKey(args[0])
		if err != nil {
			return err
		}
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := snapshotService(rt)
		if err != nil {
			return err
		}
		res, err := svc.Export(ctx, account)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import <object-key>",
	Short: "Merge a snapshot back into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := snapshotService(rt)
		if err != nil {
			return err
		}
		fmt.Printf("Importing %s overwrites cached rows with the snapshot's copy\n", args[0])
		if !confirmDestructiveAction(yes) {
			fmt.Println("Aborted")
			return nil
		}
		res, err := svc.Import(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list <account>",
	Short: "List the stored snapshots of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := model.ParseKey(args[0])
		if err != nil {
			return err
		}
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := snapshotService(rt)
		if err != nil {
			return err
		}
		infos, err := svc.List(ctx, account)
		if err != nil {
			return err
		}
		return printJSON(infos)
	},
}

func init() {
	RootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotImportCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotImportCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}
