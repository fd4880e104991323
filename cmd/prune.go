package cmd

import (
	"fmt"

	"timeline-cache/core/model"
	"timeline-cache/core/reconcile"

	"github.com/spf13/cobra"
)

// pruneCmd represents the prune command
var pruneCmd = &cobra.Command{
	Use:   "prune <account>",
	Short: "Drop statuses no bucket of an account reaches",
	Long: `Plans the deletion of statuses, references and users that no paging bucket
of the account can reach any more, prints the plan and applies it after
confirmation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		account, err := model.ParseKey(args[0])
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		yes, _ := cmd.Flags().GetBool("yes")

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		plan, err := rt.engine.PlanPrune(ctx, account)
		if err != nil {
			return err
		}
		printPruneReport(plan)

		if len(plan.Actions) == 0 {
			fmt.Println("\n✓ Nothing to prune")
			return nil
		}
		if dryRun {
			fmt.Println("\n✓ Dry run, nothing deleted")
			return nil
		}
		if !confirmDestructiveAction(yes) {
			fmt.Println("Aborted")
			return nil
		}

		executed, err := rt.engine.ApplyPrune(ctx, plan, reconcile.PruneOptions{Confirmed: true})
		if err != nil {
			return err
		}
		fmt.Printf("\n✓ Deleted %d rows\n", executed)
		return nil
	},
}

func printPruneReport(plan *reconcile.PrunePlan) {
	fmt.Printf("Prune plan for %s\n", plan.Account)
	fmt.Printf("  Reachable statuses:  %d\n", plan.Summary.Reachable)
	fmt.Printf("  Statuses to delete:  %d\n", plan.Summary.Statuses)
	fmt.Printf("  Dangling references: %d\n", plan.Summary.References)
	fmt.Printf("  Orphan users:        %d\n", plan.Summary.Users)

	if len(plan.Actions) == 0 {
		return
	}
	fmt.Println("\nSample actions:")
	for i, action := range plan.Actions {
		if i == 5 {
			fmt.Printf("  ... and %d more\n", len(plan.Actions)-5)
			break
		}
		fmt.Printf("  [%s] %s (%s)\n", action.Type, action.Key, action.Reason)
	}
}

func init() {
	RootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().Bool("dry-run", false, "Print the plan without deleting")
	pruneCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")
}
