package cmd

import (
	"fmt"

	"timeline-cache/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fixFlag   bool
	usersFlag bool
)

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Perform integrity checks on the cache",
	Long:  `Checks the cache schema, the consistency of stored rows and the snapshot bucket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// schemaCmd represents the integrity schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Compare the cache tables with the models",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := integrity.NewService(rt.store, nil, rt.cfg.Storage, rt.log).CheckSchema()
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}
		if !report.Matched {
			return fmt.Errorf("schema does not match the models")
		}
		return nil
	},
}

// consistencyCmd represents the integrity consistency command
var consistencyCmd = &cobra.Command{
	Use:   "consistency",
	Short: "Find dangling references, orphan users and broken entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc := integrity.NewService(rt.store, nil, rt.cfg.Storage, rt.log)
		report, err := svc.CheckConsistency(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}
		if !fixFlag {
			return nil
		}

		fixed, err := svc.FixConsistency(ctx, usersFlag)
		if err != nil {
			return err
		}
		rt.log.Info("Consistency fix complete",
			zap.Int64("references", fixed.References),
			zap.Int64("users", fixed.Users),
		)
		return printJSON(fixed)
	},
}

// storageCmd represents the integrity storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Check the snapshot bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		client, err := rt.objectStorage()
		if err != nil {
			return err
		}
		svc := integrity.NewService(rt.store, client, rt.cfg.Storage, rt.log)
		report, err := svc.CheckStorage(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}
		if fixFlag {
			return svc.FixStorage(ctx, report)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(schemaCmd)
	integrityCmd.AddCommand(consistencyCmd)
	integrityCmd.AddCommand(storageCmd)

	consistencyCmd.Flags().BoolVar(&fixFlag, "fix", false, "Remove dangling references")
	consistencyCmd.Flags().BoolVar(&usersFlag, "users", false, "With --fix, also remove orphan users")
	storageCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create the bucket and remove stray objects")
}
