package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/dates"
	"github.com/zulandar/planyard/internal/plan"
	"github.com/zulandar/planyard/internal/ticket"
)

// ticketTimeout bounds one issue creation together with its store writes.
const ticketTimeout = 30 * time.Second

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Single-task commands",
	}

	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskBumpCmd())
	cmd.AddCommand(newTaskDepsCmd())
	cmd.AddCommand(newTaskSnoozeCmd())
	cmd.AddCommand(newTaskTicketCmd())
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, f, args[0])
		},
	}

	f.register(cmd, false)
	return cmd
}

func runTaskShow(cmd *cobra.Command, f planFlags, taskID string) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	t, err := plan.GetTask(tx, f.project, taskID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Module:      %s\n", t.Module)
	fmt.Fprintf(out, "Plan:        %s\n", t.PlanID)
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Priority:    %d\n", t.Priority)
	fmt.Fprintf(out, "Owner:       %s\n", orDash(t.Owner))
	fmt.Fprintf(out, "Start:       %s\n", formatDay(t.StartAt))
	fmt.Fprintf(out, "Due:         %s\n", formatDay(t.DueAt))
	fmt.Fprintf(out, "Baseline:    %s .. %s\n", formatDay(t.BaselineStart), formatDay(t.BaselineDue))
	fmt.Fprintf(out, "Snoozed to:  %s\n", formatDay(t.SnoozeUntil))
	fmt.Fprintf(out, "Ticket:      %s\n", orDash(t.TicketID))
	fmt.Fprintf(out, "Source:      %s\n", t.Source)
	fmt.Fprintf(out, "Version:     %d\n", t.Version)
	if len(t.DependsOn) > 0 {
		fmt.Fprintf(out, "Depends on:  %s\n", strings.Join(t.DependsOn, ", "))
	}
	if t.Description != nil && *t.Description != "" {
		fmt.Fprintf(out, "\n%s\n", *t.Description)
	}
	return nil
}

func newTaskBumpCmd() *cobra.Command {
	var (
		f    planFlags
		days int
	)

	cmd := &cobra.Command{
		Use:   "bump <task-id>",
		Short: "Push a task's due date out",
		Long: fmt.Sprintf(`Moves the task's due date out by --days (clamped to %d..%d). A task
without a due date is bumped from today. Dependents are not moved.`, plan.MinBumpDays, plan.MaxBumpDays),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskBump(cmd, f, args[0], days)
		},
	}

	f.register(cmd, false)
	cmd.Flags().IntVar(&days, "days", 1, "days to bump by")
	return cmd
}

func runTaskBump(cmd *cobra.Command, f planFlags, taskID string, days int) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	due, err := plan.Bump(tx, f.project, taskID, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Task %s now due %s\n", taskID, due.UTC().Format("2006-01-02"))
	return nil
}

func newTaskDepsCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "deps <task-id> [depends-on-id...]",
		Short: "Replace a task's dependencies",
		Long:  "Sets the tasks the given task depends on. With no ids the dependency set is cleared.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskDeps(cmd, f, args[0], args[1:])
		},
	}

	f.register(cmd, false)
	return cmd
}

func runTaskDeps(cmd *cobra.Command, f planFlags, taskID string, dependsOn []string) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	if err := plan.SetDependencies(tx, f.project, taskID, dependsOn); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(dependsOn) == 0 {
		fmt.Fprintf(out, "Cleared dependencies of %s\n", taskID)
		return nil
	}
	fmt.Fprintf(out, "Task %s depends on %s\n", taskID, strings.Join(dependsOn, ", "))
	return nil
}

func newTaskSnoozeCmd() *cobra.Command {
	var (
		f     planFlags
		until string
		days  int
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "snooze <task-id>",
		Short: "Hide a task from digests until a date",
		Long: `Sets the task's snooze date from --until (RFC3339 or YYYY-MM-DD) or --days
from now. --clear removes it. Snoozing never changes scheduling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := snoozeTarget(until, days, clear, time.Now().UTC())
			if err != nil {
				return err
			}
			return runTaskSnooze(cmd, f, args[0], at)
		},
	}

	f.register(cmd, false)
	cmd.Flags().StringVar(&until, "until", "", "snooze until this timestamp")
	cmd.Flags().IntVar(&days, "days", 0, "snooze for this many days")
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the snooze")
	cmd.MarkFlagsMutuallyExclusive("until", "days", "clear")
	cmd.MarkFlagsOneRequired("until", "days", "clear")
	return cmd
}

// snoozeTarget resolves the snooze flags to a timestamp, or nil to clear.
func snoozeTarget(until string, days int, clear bool, now time.Time) (*time.Time, error) {
	switch {
	case clear:
		return nil, nil
	case until != "":
		t, err := dates.ParseTimestamp(until)
		if err != nil {
			return nil, err
		}
		return &t, nil
	case days > 0:
		t := dates.AddDays(now, days)
		return &t, nil
	default:
		return nil, fmt.Errorf("--days must be positive")
	}
}

func runTaskSnooze(cmd *cobra.Command, f planFlags, taskID string, until *time.Time) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	if err := plan.Snooze(tx, f.project, taskID, until); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if until == nil {
		fmt.Fprintf(out, "Task %s unsnoozed\n", taskID)
		return nil
	}
	fmt.Fprintf(out, "Task %s snoozed until %s\n", taskID, until.Format(time.RFC3339))
	return nil
}

func newTaskTicketCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "ticket <task-id>",
		Short: "Open a GitHub issue for a task and link it",
		Long: `Creates an issue in the repository named by the github section of the
config, titled after the task, and records owner/repo#number as the task's
ticket. The token is read from the environment variable named by
github.token_env.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskTicket(cmd, f, args[0])
		},
	}

	f.register(cmd, false)
	return cmd
}

func runTaskTicket(cmd *cobra.Command, f planFlags, taskID string) error {
	cfg, gormDB, logger, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	if !cfg.GitHub.Enabled() {
		return fmt.Errorf("github.owner and github.repo must be set in %s", f.configPath)
	}
	linker, err := ticket.NewLinker(ticket.LinkerOpts{
		Owner: cfg.GitHub.Owner,
		Repo:  cfg.GitHub.Repo,
		Token: cfg.GitHub.Token(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), ticketTimeout)
	defer cancel()

	ref, err := linker.Link(ctx, gormDB.WithContext(ctx), f.project, taskID)
	if err != nil {
		return err
	}
	logger.Info("ticket linked", "task", taskID, "ticket", ref)
	fmt.Fprintf(cmd.OutOrStdout(), "Linked %s to %s\n", taskID, ref)
	return nil
}
