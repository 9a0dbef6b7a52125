package mcpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/zulandar/planyard/internal/plan"
	"gorm.io/gorm"
)

// draftSource marks tasks committed from an AI draft.
const draftSource = "ai_draft"

// PlanGetTool handles plan_get.
type PlanGetTool struct{ deps }

// Definition returns the MCP tool definition for registration.
func (t *PlanGetTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_get",
		mcp.WithDescription(
			"Return a project's plan with its tasks in display order and any dependency graph warnings. "+
				"Without plan_id the project's active plan is returned.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier.")),
		mcp.WithString("plan_id", mcp.Description("Plan identifier. Defaults to the active plan.")),
	)
}

// Handle processes the plan_get tool call.
func (t *PlanGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	db, cancel := t.scoped(ctx)
	defer cancel()
	view, err := plan.Get(db, req.GetString("project_id", ""), req.GetString("plan_id", ""))
	if err != nil {
		return engineError(err)
	}
	return jsonResult(view)
}

// CommitDraftTool handles plan_commit_draft.
type CommitDraftTool struct{ deps }

// Definition returns the MCP tool definition for registration.
func (t *CommitDraftTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_commit_draft",
		mcp.WithDescription(
			"Commit a drafted plan: creates a new plan version for the project, makes it active "+
				"and inserts the drafted tasks. Tasks may carry client ids so that dependsOn can "+
				"reference other drafted tasks. The plan and its tasks are written atomically.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier.")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Plan title.")),
		mcp.WithString("tasks", mcp.Required(), mcp.Description(
			"JSON array of tasks. Fields: id, title, module, phaseId, description, owner, "+
				"startAt, dueAt (RFC3339), status, priority, orderIndex, dependsOn (array of ids).",
		)),
	)
}

// Handle processes the plan_commit_draft tool call.
func (t *CommitDraftTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var inputs []plan.TaskInput
	if err := json.Unmarshal([]byte(req.GetString("tasks", "")), &inputs); err != nil {
		return mcp.NewToolResultError("tasks must be a JSON array of task objects: " + err.Error()), nil
	}
	source := draftSource
	for i := range inputs {
		if inputs[i].Source == nil {
			inputs[i].Source = &source
		}
	}

	db, cancel := t.scoped(ctx)
	defer cancel()

	projectID := req.GetString("project_id", "")
	var result struct {
		PlanID  string   `json:"planId"`
		Version int      `json:"version"`
		TaskIDs []string `json:"taskIds"`
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		p, err := plan.CreatePlan(tx, plan.CreatePlanOpts{ProjectID: projectID, Title: req.GetString("title", "")})
		if err != nil {
			return err
		}
		res, err := plan.UpsertTasks(tx, projectID, p.ID, inputs)
		if err != nil {
			return err
		}
		result.PlanID, result.Version, result.TaskIDs = p.ID, p.Version, res.IDs
		return nil
	})
	if err != nil {
		t.log.Warn("draft commit failed", "project", projectID, "err", err)
		return engineError(err)
	}
	t.log.Info("draft committed", "project", projectID, "plan", result.PlanID, "tasks", len(result.TaskIDs))
	return jsonResult(result)
}

// ShiftTool handles plan_shift.
type ShiftTool struct{ deps }

// Definition returns the MCP tool definition for registration.
func (t *ShiftTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_shift",
		mcp.WithDescription(
			"Move a task's start and due dates by a number of days. With cascade, every task that "+
				"transitively depends on it moves by the same amount, each exactly once.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier.")),
		mcp.WithString("plan_id", mcp.Description("Plan identifier. Defaults to the active plan.")),
		mcp.WithString("from_task_id", mcp.Required(), mcp.Description("Anchor task.")),
		mcp.WithNumber("delta_days", mcp.Required(), mcp.Description("Whole days; negative moves earlier.")),
		mcp.WithBoolean("cascade", mcp.Description("Also move dependents. Default true.")),
	)
}

// Handle processes the plan_shift tool call.
func (t *ShiftTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	delta, deltaErr := intArg(req, "delta_days", 0)
	cascade, cascadeErr := boolArg(req, "cascade", true)
	if res := argErrors(deltaErr, cascadeErr); res != nil {
		return res, nil
	}

	db, cancel := t.scoped(ctx)
	defer cancel()

	projectID := req.GetString("project_id", "")
	p, err := plan.ResolvePlan(db, projectID, req.GetString("plan_id", ""))
	if err != nil {
		return engineError(err)
	}
	res, err := plan.Shift(db, plan.ShiftOpts{
		ProjectID:  projectID,
		PlanID:     p.ID,
		FromTaskID: req.GetString("from_task_id", ""),
		DeltaDays:  delta,
		Cascade:    cascade,
	})
	if err != nil {
		return engineError(err)
	}
	return jsonResult(res)
}

// BumpTool handles task_bump.
type BumpTool struct{ deps }

// Definition returns the MCP tool definition for registration.
func (t *BumpTool) Definition() mcp.Tool {
	return mcp.NewTool("task_bump",
		mcp.WithDescription(
			"Push one task's due date out by 1 to 60 days. Start date and dependents are not touched.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier.")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task to bump.")),
		mcp.WithNumber("days", mcp.Description("Days to add, clamped to 1..60. Default 1.")),
	)
}

// Handle processes the task_bump tool call.
func (t *BumpTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days, err := intArg(req, "days", 1)
	if res := argErrors(err); res != nil {
		return res, nil
	}
	db, cancel := t.scoped(ctx)
	defer cancel()
	due, err := plan.Bump(db, req.GetString("project_id", ""), req.GetString("task_id", ""), days)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(map[string]string{"dueAt": due.Format(time.RFC3339)})
}

// BaselineTool handles plan_baseline.
type BaselineTool struct{ deps }

// Definition returns the MCP tool definition for registration.
func (t *BaselineTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_baseline",
		mcp.WithDescription(
			"Snapshot current dates as the baseline for variance tracking, or clear the baseline. "+
				"Without task_ids the whole plan is targeted.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier.")),
		mcp.WithString("plan_id", mcp.Description("Plan identifier. Defaults to the active plan.")),
		mcp.WithString("task_ids", mcp.Description("Comma-separated task ids.")),
		mcp.WithBoolean("clear", mcp.Description("Clear instead of set.")),
	)
}

// Handle processes the plan_baseline tool call.
func (t *BaselineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clearBaseline, err := boolArg(req, "clear", false)
	if res := argErrors(err); res != nil {
		return res, nil
	}
	db, cancel := t.scoped(ctx)
	defer cancel()

	opts := plan.BaselineOpts{
		ProjectID: req.GetString("project_id", ""),
		PlanID:    req.GetString("plan_id", ""),
		TaskIDs:   splitIDs(req.GetString("task_ids", "")),
	}
	op := plan.SetBaseline
	if clearBaseline {
		op = plan.ClearBaseline
	}
	n, err := op(db, opts)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(map[string]int{"updated": n})
}

// BulkFilterTool handles tasks_bulk_filter.
type BulkFilterTool struct{ deps }

// Definition returns the MCP tool definition for registration.
func (t *BulkFilterTool) Definition() mcp.Tool {
	return mcp.NewTool("tasks_bulk_filter",
		mcp.WithDescription(
			"Set owner and/or status on every task of a plan matching a filter, in one atomic update. "+
				"Filter fields combine with AND. With dry_run the matching tasks are returned instead.",
		),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project identifier.")),
		mcp.WithString("plan_id", mcp.Description("Plan identifier. Defaults to the active plan.")),
		mcp.WithString("owner_contains", mcp.Description("Case-insensitive owner substring.")),
		mcp.WithString("status", mcp.Description("planned, in_progress, blocked or done.")),
		mcp.WithBoolean("has_ticket", mcp.Description("Only tasks with (true) or without (false) a ticket.")),
		mcp.WithBoolean("overdue", mcp.Description("Only unfinished tasks due before now.")),
		mcp.WithNumber("due_within_days", mcp.Description("Only unfinished tasks due in the next 1..60 days.")),
		mcp.WithString("q", mcp.Description("Case-insensitive search over title, module and owner.")),
		mcp.WithString("set_owner", mcp.Description("New owner. An empty string clears it.")),
		mcp.WithString("set_status", mcp.Description("New status.")),
		mcp.WithBoolean("dry_run", mcp.Description("Return matches without writing.")),
	)
}

// Handle processes the tasks_bulk_filter tool call.
func (t *BulkFilterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hasTicket, hasTicketErr := optionalBool(req, "has_ticket")
	overdue, overdueErr := boolArg(req, "overdue", false)
	within, withinErr := intArg(req, "due_within_days", 0)
	owner, ownerErr := optionalString(req, "set_owner")
	status, statusErr := optionalString(req, "set_status")
	dryRun, dryRunErr := boolArg(req, "dry_run", false)
	if res := argErrors(hasTicketErr, overdueErr, withinErr, ownerErr, statusErr, dryRunErr); res != nil {
		return res, nil
	}

	filter := plan.Filter{
		OwnerContains: req.GetString("owner_contains", ""),
		Status:        req.GetString("status", ""),
		HasTicket:     hasTicket,
		Overdue:       overdue,
		DueWithinDays: within,
		Q:             req.GetString("q", ""),
	}
	set := plan.FieldSet{Owner: owner, Status: status}
	projectID := req.GetString("project_id", "")
	planID := req.GetString("plan_id", "")

	db, cancel := t.scoped(ctx)
	defer cancel()

	if dryRun {
		tasks, err := plan.MatchTasks(db, projectID, planID, filter)
		if err != nil {
			return engineError(err)
		}
		return jsonResult(tasks)
	}
	n, err := plan.BulkUpdateByFilter(db, projectID, planID, filter, set)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(map[string]int{"updated": n})
}
