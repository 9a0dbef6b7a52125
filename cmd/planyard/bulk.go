package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/plan"
)

func newBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Change owner or status on many tasks at once",
	}

	cmd.AddCommand(newBulkIDsCmd())
	cmd.AddCommand(newBulkFilterCmd())
	return cmd
}

// registerSetFlags adds the --set-owner and --set-status flags.
func registerSetFlags(cmd *cobra.Command, owner, status *string) {
	cmd.Flags().StringVar(owner, "set-owner", "", "new owner (empty string clears it)")
	cmd.Flags().StringVar(status, "set-status", "", "new status: planned, in_progress, blocked or done")
}

// fieldSet builds the assignment from the flags the user actually passed.
func fieldSet(cmd *cobra.Command, owner, status string) plan.FieldSet {
	var set plan.FieldSet
	if cmd.Flags().Changed("set-owner") {
		set.Owner = &owner
	}
	if cmd.Flags().Changed("set-status") {
		set.Status = &status
	}
	return set
}

func newBulkIDsCmd() *cobra.Command {
	var (
		f             planFlags
		owner, status string
	)

	cmd := &cobra.Command{
		Use:   "ids <task-id>...",
		Short: "Update the named tasks of a plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulkIDs(cmd, f, args, fieldSet(cmd, owner, status))
		},
	}

	f.register(cmd, true)
	registerSetFlags(cmd, &owner, &status)
	return cmd
}

func runBulkIDs(cmd *cobra.Command, f planFlags, ids []string, set plan.FieldSet) error {
	if set.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to change: pass --set-owner or --set-status.")
		return nil
	}
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	n, err := plan.BulkUpdateByIDs(tx, f.project, f.planID, ids, set)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d tasks\n", n)
	return nil
}

func newBulkFilterCmd() *cobra.Command {
	var (
		f             planFlags
		filter        plan.Filter
		hasTicket     bool
		owner, status string
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Update every task matching a filter",
		Long: `Applies --set-owner and --set-status to every task of the plan that matches
all of the given filters. With --dry-run the matching tasks are listed and
nothing is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("has-ticket") {
				filter.HasTicket = &hasTicket
			}
			return runBulkFilter(cmd, f, filter, fieldSet(cmd, owner, status), dryRun)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&filter.OwnerContains, "owner-contains", "", "owner contains this text (case-insensitive)")
	cmd.Flags().StringVar(&filter.Status, "status", "", "status equals")
	cmd.Flags().BoolVar(&hasTicket, "has-ticket", false, "has a ticket (use --has-ticket=false for none)")
	cmd.Flags().BoolVar(&filter.Overdue, "overdue", false, "due before now and not done")
	cmd.Flags().IntVar(&filter.DueWithinDays, "due-within", 0, fmt.Sprintf("due within this many days (%d..%d)", plan.MinDueWithinDays, plan.MaxDueWithinDays))
	cmd.Flags().StringVarP(&filter.Q, "query", "q", "", "text search over title, module and owner")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list matching tasks without changing them")
	registerSetFlags(cmd, &owner, &status)
	return cmd
}

func runBulkFilter(cmd *cobra.Command, f planFlags, filter plan.Filter, set plan.FieldSet, dryRun bool) error {
	out := cmd.OutOrStdout()
	if !dryRun && set.Empty() {
		fmt.Fprintln(out, "Nothing to change: pass --set-owner or --set-status.")
		return nil
	}
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	if dryRun {
		tasks, err := plan.MatchTasks(tx, f.project, f.planID, filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks match.")
			return nil
		}
		printTasks(out, tasks)
		fmt.Fprintf(out, "\n%d tasks would be updated\n", len(tasks))
		return nil
	}

	n, err := plan.BulkUpdateByFilter(tx, f.project, f.planID, filter, set)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %d tasks\n", n)
	return nil
}
