package mcpapi

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/plan"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDeps(t *testing.T) deps {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Plan{}, &models.Task{}, &models.TaskDep{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return deps{db: db, timeout: 5 * time.Second, log: log.New(io.Discard)}
}

func call(t *testing.T, handle func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

const draft = `[
  {"id": "d1", "title": "Kickoff", "module": "pm", "startAt": "2025-03-03T09:00:00Z", "dueAt": "2025-03-04T09:00:00Z"},
  {"id": "d2", "title": "Build", "module": "core", "owner": "Dana", "dueAt": "2025-03-10T09:00:00Z", "dependsOn": ["d1"]},
  {"id": "d3", "title": "Release", "module": "ops", "dueAt": "2025-03-12T09:00:00Z", "dependsOn": ["d2"]}
]`

// commitDraft commits the three-task draft and returns the new plan id.
func commitDraft(t *testing.T, d deps) string {
	t.Helper()
	tool := &CommitDraftTool{deps: d}
	result := call(t, tool.Handle, map[string]interface{}{
		"project_id": "p1",
		"title":      "Drafted",
		"tasks":      draft,
	})
	if result.IsError {
		t.Fatalf("commit failed: %s", resultText(result))
	}
	var out struct {
		PlanID  string   `json:"planId"`
		Version int      `json:"version"`
		TaskIDs []string `json:"taskIds"`
	}
	if err := json.Unmarshal([]byte(resultText(result)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(out.TaskIDs) != 3 {
		t.Fatalf("taskIds = %v", out.TaskIDs)
	}
	return out.PlanID
}

func TestDefinitions(t *testing.T) {
	d := deps{}
	tests := []struct {
		def  mcp.Tool
		name string
	}{
		{(&PlanGetTool{d}).Definition(), "plan_get"},
		{(&CommitDraftTool{d}).Definition(), "plan_commit_draft"},
		{(&ShiftTool{d}).Definition(), "plan_shift"},
		{(&BumpTool{d}).Definition(), "task_bump"},
		{(&BaselineTool{d}).Definition(), "plan_baseline"},
		{(&BulkFilterTool{d}).Definition(), "tasks_bulk_filter"},
	}
	for _, tt := range tests {
		if tt.def.Name != tt.name {
			t.Errorf("tool name = %q, want %q", tt.def.Name, tt.name)
		}
		if tt.def.Description == "" {
			t.Errorf("%s has no description", tt.name)
		}
	}
}

func TestCommitDraft_MarksSourceAndActivates(t *testing.T) {
	d := testDeps(t)
	planID := commitDraft(t, d)

	view, err := plan.GetActive(d.db, "p1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if view.Plan.ID != planID {
		t.Errorf("active plan = %s, want %s", view.Plan.ID, planID)
	}
	for _, task := range view.Tasks {
		if task.Source != draftSource {
			t.Errorf("%s source = %q, want %q", task.ID, task.Source, draftSource)
		}
	}
	if len(view.Warnings) != 0 {
		t.Errorf("warnings = %+v, want none", view.Warnings)
	}
}

func TestCommitDraft_InvalidTasksRollsBack(t *testing.T) {
	d := testDeps(t)
	tool := &CommitDraftTool{deps: d}

	result := call(t, tool.Handle, map[string]interface{}{
		"project_id": "p1",
		"title":      "Broken",
		"tasks":      `[{"id": "x", "title": "No module"}]`,
	})
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	var plans int64
	d.db.Model(&models.Plan{}).Count(&plans)
	if plans != 0 {
		t.Errorf("plans = %d, want 0 after rollback", plans)
	}

	result = call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "title": "T", "tasks": "not json"})
	if !result.IsError || !strings.Contains(resultText(result), "JSON array") {
		t.Errorf("bad json result = %q", resultText(result))
	}
}

func TestPlanGet(t *testing.T) {
	d := testDeps(t)
	tool := &PlanGetTool{deps: d}

	result := call(t, tool.Handle, map[string]interface{}{"project_id": "p1"})
	if !result.IsError || !strings.Contains(resultText(result), "no active plan") {
		t.Errorf("empty project result = %q", resultText(result))
	}

	commitDraft(t, d)
	result = call(t, tool.Handle, map[string]interface{}{"project_id": "p1"})
	if result.IsError {
		t.Fatalf("plan_get failed: %s", resultText(result))
	}
	var view plan.PlanView
	if err := json.Unmarshal([]byte(resultText(result)), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if len(view.Tasks) != 3 || view.Tasks[2].DependsOn[0] != "d2" {
		t.Errorf("view tasks = %+v", view.Tasks)
	}
}

func TestShiftAndBaseline(t *testing.T) {
	d := testDeps(t)
	commitDraft(t, d)

	baseline := &BaselineTool{deps: d}
	result := call(t, baseline.Handle, map[string]interface{}{"project_id": "p1"})
	if result.IsError || !strings.Contains(resultText(result), `"updated": 3`) {
		t.Fatalf("baseline = %q", resultText(result))
	}

	shift := &ShiftTool{deps: d}
	result = call(t, shift.Handle, map[string]interface{}{
		"project_id":   "p1",
		"from_task_id": "d2",
		"delta_days":   float64(3),
	})
	if result.IsError {
		t.Fatalf("shift failed: %s", resultText(result))
	}
	var res plan.ShiftResult
	if err := json.Unmarshal([]byte(resultText(result)), &res); err != nil {
		t.Fatalf("decode shift: %v", err)
	}
	if res.Updated != 2 || res.AffectedIDs[0] != "d2" || res.AffectedIDs[1] != "d3" {
		t.Errorf("shift = %+v, want d2 and d3", res)
	}

	rows, err := plan.VarianceReport(d.db, "p1", "")
	if err != nil {
		t.Fatalf("VarianceReport: %v", err)
	}
	for _, row := range rows {
		want := 3
		if row.TaskID == "d1" {
			want = 0
		}
		if row.Due == nil || *row.Due != want {
			t.Errorf("%s due variance = %v, want %d", row.TaskID, row.Due, want)
		}
	}

	result = call(t, baseline.Handle, map[string]interface{}{"project_id": "p1", "task_ids": "d1, d9", "clear": true})
	if !result.IsError || !strings.Contains(resultText(result), "d9") {
		t.Errorf("missing id result = %q", resultText(result))
	}
}

func TestBump(t *testing.T) {
	d := testDeps(t)
	commitDraft(t, d)
	tool := &BumpTool{deps: d}

	result := call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "task_id": "d3", "days": float64(2)})
	if result.IsError || !strings.Contains(resultText(result), "2025-03-14T09:00:00Z") {
		t.Errorf("bump = %q", resultText(result))
	}

	result = call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "task_id": "nope"})
	if !result.IsError {
		t.Error("expected tool error for a missing task")
	}
}

func TestBulkFilter(t *testing.T) {
	d := testDeps(t)
	commitDraft(t, d)
	tool := &BulkFilterTool{deps: d}

	result := call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "q": "dana", "dry_run": true})
	var matched []models.Task
	if err := json.Unmarshal([]byte(resultText(result)), &matched); err != nil {
		t.Fatalf("decode dry run %q: %v", resultText(result), err)
	}
	if len(matched) != 1 || matched[0].ID != "d2" {
		t.Errorf("matched = %+v", matched)
	}

	result = call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "has_ticket": false, "set_status": "blocked"})
	if result.IsError || !strings.Contains(resultText(result), `"updated": 3`) {
		t.Errorf("bulk = %q", resultText(result))
	}

	result = call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "owner_contains": "dana"})
	if result.IsError || !strings.Contains(resultText(result), `"updated": 0`) {
		t.Errorf("no-op set = %q", resultText(result))
	}

	result = call(t, tool.Handle, map[string]interface{}{"project_id": "p1", "due_within_days": float64(99), "set_owner": ""})
	if !result.IsError {
		t.Error("expected validation error for due_within_days")
	}

	malformed := []map[string]interface{}{
		{"due_within_days": 0.5},
		{"due_within_days": "7"},
		{"overdue": "true"},
		{"has_ticket": float64(1)},
		{"set_status": float64(2)},
	}
	for _, args := range malformed {
		args["project_id"] = "p1"
		args["set_owner"] = "mallory"
		result = call(t, tool.Handle, args)
		if !result.IsError {
			t.Errorf("args %v: expected tool error, got %q", args, resultText(result))
		}
	}
	var reassigned int64
	d.db.Model(&models.Task{}).Where("owner = ?", "mallory").Count(&reassigned)
	if reassigned != 0 {
		t.Errorf("%d tasks reassigned by rejected calls", reassigned)
	}
}

func TestArgHelpers_RejectMalformed(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"whole": float64(3),
		"frac":  2.5,
		"text":  "3",
		"flag":  true,
	}

	if v, err := intArg(req, "whole", 0); err != nil || v != 3 {
		t.Errorf("intArg(whole) = %d, %v", v, err)
	}
	if v, err := intArg(req, "missing", 7); err != nil || v != 7 {
		t.Errorf("intArg(missing) = %d, %v", v, err)
	}
	if _, err := intArg(req, "frac", 0); err == nil {
		t.Error("intArg(frac) should fail")
	}
	if _, err := intArg(req, "text", 0); err == nil {
		t.Error("intArg(text) should fail")
	}
	if v, err := optionalBool(req, "flag"); err != nil || v == nil || !*v {
		t.Errorf("optionalBool(flag) = %v, %v", v, err)
	}
	if v, err := optionalBool(req, "missing"); err != nil || v != nil {
		t.Errorf("optionalBool(missing) = %v, %v", v, err)
	}
	if _, err := boolArg(req, "text", false); err == nil {
		t.Error("boolArg(text) should fail")
	}
	if _, err := optionalString(req, "whole"); err == nil {
		t.Error("optionalString(whole) should fail")
	}
	if argErrors(nil, nil) != nil {
		t.Error("argErrors with no errors should be nil")
	}
}

func TestSplitIDs(t *testing.T) {
	got := splitIDs(" a, ,b,c ")
	if strings.Join(got, "|") != "a|b|c" {
		t.Errorf("splitIDs = %v", got)
	}
	if splitIDs("") != nil {
		t.Error("empty input should give nil")
	}
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(Options{DB: testDeps(t).db})
	if s == nil {
		t.Fatal("New returned nil")
	}
}
