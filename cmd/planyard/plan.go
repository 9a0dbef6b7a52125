package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/plan"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// planFlags are shared by every plan subcommand.
type planFlags struct {
	configPath string
	project    string
	planID     string
}

func (f *planFlags) register(cmd *cobra.Command, withPlan bool) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to Planyard config file")
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "project id (required)")
	cmd.MarkFlagRequired("project")
	if withPlan {
		cmd.Flags().StringVar(&f.planID, "plan", "", "plan id (defaults to the active plan)")
	}
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan management commands",
	}

	cmd.AddCommand(newPlanListCmd())
	cmd.AddCommand(newPlanShowCmd())
	cmd.AddCommand(newPlanCreateCmd())
	cmd.AddCommand(newPlanActivateCmd())
	cmd.AddCommand(newPlanImportCmd())
	cmd.AddCommand(newPlanReorderCmd())
	cmd.AddCommand(newPlanShiftCmd())
	cmd.AddCommand(newPlanBaselineCmd())
	cmd.AddCommand(newPlanVarianceCmd())
	cmd.AddCommand(newPlanCheckCmd())
	return cmd
}

func newPlanListCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanList(cmd, f)
		},
	}

	f.register(cmd, false)
	return cmd
}

func runPlanList(cmd *cobra.Command, f planFlags) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	plans, err := plan.ListPlans(tx, f.project)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tACTIVE\tTITLE\tCREATED")
	for _, p := range plans {
		active := ""
		if p.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			p.ID, p.Version, active, truncate(p.Title, 40), p.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func newPlanShowCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a plan with its ordered tasks",
		Long:  "Displays the active plan (or --plan) with every task in plan order and any dependency warnings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanShow(cmd, f)
		},
	}

	f.register(cmd, true)
	return cmd
}

func runPlanShow(cmd *cobra.Command, f planFlags) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	v, err := plan.Get(tx, f.project, f.planID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Plan:     %s (v%d)\n", v.Plan.Title, v.Plan.Version)
	fmt.Fprintf(out, "ID:       %s\n", v.Plan.ID)
	fmt.Fprintf(out, "Active:   %t\n", v.Plan.IsActive)
	fmt.Fprintf(out, "Tasks:    %d\n", len(v.Tasks))

	if len(v.Tasks) > 0 {
		fmt.Fprintln(out)
		printTasks(out, v.Tasks)
	}
	printWarnings(out, v.Warnings)
	return nil
}

func printTasks(out io.Writer, tasks []models.Task) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tTITLE\tMODULE\tSTATUS\tOWNER\tSTART\tDUE\tDEPENDS ON")
	for _, t := range tasks {
		deps := "-"
		if len(t.DependsOn) > 0 {
			deps = strings.Join(t.DependsOn, ",")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.OrderIndex, t.ID, truncate(t.Title, 40), t.Module, t.Status, orDash(t.Owner),
			formatDay(t.StartAt), formatDay(t.DueAt), deps)
	}
	w.Flush()
}

func printWarnings(out io.Writer, warnings []plan.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(out, "\nWarnings (%d):\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(out, "  [%s] %s: %s\n", w.Kind, w.TaskID, w.Detail)
	}
}

func newPlanCreateCmd() *cobra.Command {
	var (
		f     planFlags
		title string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new plan and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanCreate(cmd, f, title)
		},
	}

	f.register(cmd, false)
	cmd.Flags().StringVar(&title, "title", "", "plan title (required)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runPlanCreate(cmd *cobra.Command, f planFlags, title string) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	p, err := plan.CreatePlan(tx, plan.CreatePlanOpts{ProjectID: f.project, Title: title})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created plan %s (v%d): %s\n", p.ID, p.Version, p.Title)
	return nil
}

func newPlanActivateCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "activate <plan-id>",
		Short: "Make a plan the project's active plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanActivate(cmd, f, args[0])
		},
	}

	f.register(cmd, false)
	return cmd
}

func runPlanActivate(cmd *cobra.Command, f planFlags, planID string) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	p, err := plan.ActivatePlan(tx, f.project, planID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Activated plan %s (v%d): %s\n", p.ID, p.Version, p.Title)
	return nil
}

// importFile is the on-disk shape read by `plan import`.
type importFile struct {
	Title string           `yaml:"title"`
	Tasks []plan.TaskInput `yaml:"tasks"`
}

func newPlanImportCmd() *cobra.Command {
	var (
		f     planFlags
		title string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from a YAML file",
		Long: `Reads a YAML file with a title and a list of tasks.

Without --plan a new plan is created, activated and filled in one
transaction. With --plan the tasks are upserted into that plan: tasks whose
id already exists are updated, the rest are inserted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanImport(cmd, f, args[0], title)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&title, "title", "", "plan title (overrides the file)")
	return cmd
}

func readImportFile(path string) (*importFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var file importFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Tasks) == 0 {
		return nil, fmt.Errorf("%s: no tasks to import", path)
	}
	return &file, nil
}

func runPlanImport(cmd *cobra.Command, f planFlags, path, title string) error {
	file, err := readImportFile(path)
	if err != nil {
		return err
	}
	if title != "" {
		file.Title = title
	}
	if f.planID == "" && file.Title == "" {
		return fmt.Errorf("%s: a title is required to create a plan (set it in the file or pass --title)", path)
	}

	cfg, gormDB, logger, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	db, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	planID := f.planID
	var res *plan.UpsertResult
	err = db.Transaction(func(tx *gorm.DB) error {
		if planID == "" {
			p, err := plan.CreatePlan(tx, plan.CreatePlanOpts{ProjectID: f.project, Title: file.Title})
			if err != nil {
				return err
			}
			planID = p.ID
		}
		r, err := plan.UpsertTasks(tx, f.project, planID, file.Tasks)
		res = r
		return err
	})
	if err != nil {
		return err
	}

	logger.Debug("plan imported", "project", f.project, "plan", planID, "file", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported into plan %s: %d created, %d updated\n", planID, res.Created, res.Updated)
	return nil
}

func newPlanReorderCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "reorder <task-id>...",
		Short: "Set the plan order of the given tasks",
		Long:  "Assigns order 0, 1, 2, ... to the tasks in the order given. Tasks not named keep their position.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanReorder(cmd, f, args)
		},
	}

	f.register(cmd, true)
	return cmd
}

func runPlanReorder(cmd *cobra.Command, f planFlags, ids []string) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	n, err := plan.Reorder(tx, f.project, f.planID, ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reordered %d tasks\n", n)
	return nil
}

func newPlanShiftCmd() *cobra.Command {
	var (
		f         planFlags
		days      int
		noCascade bool
	)

	cmd := &cobra.Command{
		Use:   "shift <task-id>",
		Short: "Shift a task's dates and cascade to its dependents",
		Long: `Moves the task's start and due dates by --days. Unless --no-cascade is
given, every task that transitively depends on it moves by the same amount.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanShift(cmd, f, args[0], days, !noCascade)
		},
	}

	f.register(cmd, true)
	cmd.Flags().IntVar(&days, "days", 0, "days to shift by, negative to pull in (required)")
	cmd.Flags().BoolVar(&noCascade, "no-cascade", false, "move only the named task")
	cmd.MarkFlagRequired("days")
	return cmd
}

func runPlanShift(cmd *cobra.Command, f planFlags, taskID string, days int, cascade bool) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	p, err := plan.ResolvePlan(tx, f.project, f.planID)
	if err != nil {
		return err
	}
	res, err := plan.Shift(tx, plan.ShiftOpts{
		ProjectID:  f.project,
		PlanID:     p.ID,
		FromTaskID: taskID,
		DeltaDays:  days,
		Cascade:    cascade,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.AffectedIDs) == 0 {
		fmt.Fprintf(out, "Task %s is not in plan %s; nothing shifted.\n", taskID, p.ID)
		return nil
	}
	fmt.Fprintf(out, "Shifted %d of %d tasks by %+d days: %s\n",
		res.Updated, len(res.AffectedIDs), days, strings.Join(res.AffectedIDs, ", "))
	return nil
}

func newPlanBaselineCmd() *cobra.Command {
	var (
		f     planFlags
		tasks string
		clear bool
	)

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Snapshot (or clear) the plan's baseline dates",
		Long: `Copies each task's current start and due dates into its baseline. With
--tasks only the named tasks are touched. With --clear the baseline is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanBaseline(cmd, f, splitList(tasks), clear)
		},
	}

	f.register(cmd, true)
	cmd.Flags().StringVar(&tasks, "tasks", "", "comma-separated task ids (default: every task)")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the baseline instead of setting it")
	return cmd
}

func runPlanBaseline(cmd *cobra.Command, f planFlags, taskIDs []string, clear bool) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	opts := plan.BaselineOpts{ProjectID: f.project, PlanID: f.planID, TaskIDs: taskIDs}
	if clear {
		n, err := plan.ClearBaseline(tx, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared baseline on %d tasks\n", n)
		return nil
	}
	n, err := plan.SetBaseline(tx, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Baselined %d tasks\n", n)
	return nil
}

func newPlanVarianceCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "variance",
		Short: "Report drift from the baseline, in days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanVariance(cmd, f)
		},
	}

	f.register(cmd, true)
	return cmd
}

func runPlanVariance(cmd *cobra.Command, f planFlags) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	rows, err := plan.VarianceReport(tx, f.project, f.planID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTART\tDUE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.TaskID, truncate(r.Title, 40), formatVariance(r.Start), formatVariance(r.Due))
	}
	w.Flush()
	return nil
}

func newPlanCheckCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the plan's dependency graph",
		Long:  "Reports dependencies on unknown tasks, self-dependencies and cycles. Exits non-zero when any are found.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanCheck(cmd, f)
		},
	}

	f.register(cmd, true)
	return cmd
}

func runPlanCheck(cmd *cobra.Command, f planFlags) error {
	cfg, gormDB, _, err := connectFromConfig(cmd, f.configPath)
	if err != nil {
		return err
	}
	tx, cancel := scoped(cmd.Context(), cfg, gormDB)
	defer cancel()

	tasks, err := plan.ListTasks(tx, f.project, f.planID)
	if err != nil {
		return err
	}
	warnings := plan.CheckGraph(tasks)

	out := cmd.OutOrStdout()
	if len(warnings) == 0 {
		fmt.Fprintf(out, "Checked %d tasks: no dependency problems.\n", len(tasks))
		return nil
	}
	printWarnings(out, warnings)
	return fmt.Errorf("%d dependency warnings", len(warnings))
}
