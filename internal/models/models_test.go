package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestPlan_Fields(t *testing.T) {
	typ := reflect.TypeOf(Plan{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "ProjectID", "not null")
	assertGormTag(t, typ, "ProjectID", "idx_plan_project_active")
	assertGormTag(t, typ, "IsActive", "idx_plan_project_active")
	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Tasks", "foreignKey:PlanID")

	assertFieldType(t, typ, "Version", "int")
	assertFieldType(t, typ, "IsActive", "bool")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ProjectID", "idx_task_project_plan")
	assertGormTag(t, typ, "PlanID", "idx_task_project_plan")
	assertGormTag(t, typ, "Status", "default:planned")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "Source", "default:manual")
	assertGormTag(t, typ, "Version", "default:1")
	assertGormTag(t, typ, "Deps", "foreignKey:TaskID")
	assertGormTag(t, typ, "DependsOn", "-")

	// Nullable columns are pointers so NULL survives a round trip.
	for _, name := range []string{"StartAt", "DueAt", "BaselineStart", "BaselineDue", "BaselineSetAt", "SnoozeUntil"} {
		assertFieldType(t, typ, name, "*time.Time")
	}
	for _, name := range []string{"PhaseID", "Description", "Owner", "OriginType", "OriginID", "ActionID", "RoadmapItemID", "TicketID"} {
		assertFieldType(t, typ, name, "*string")
	}
	assertFieldType(t, typ, "Priority", "int")
	assertFieldType(t, typ, "OrderIndex", "int")
	assertFieldType(t, typ, "DependsOn", "[]string")
}

func TestTaskDep_Fields(t *testing.T) {
	typ := reflect.TypeOf(TaskDep{})

	// Composite primary key, no relation to the dependency target.
	assertGormTag(t, typ, "TaskID", "primaryKey")
	assertGormTag(t, typ, "DependsOnID", "primaryKey")
	assertGormTag(t, typ, "DependsOnID", "index")
	if typ.NumField() != 2 {
		t.Errorf("TaskDep has %d fields, want 2", typ.NumField())
	}
}

func TestTask_FillDependsOn(t *testing.T) {
	task := Task{ID: "t1", Deps: []TaskDep{
		{TaskID: "t1", DependsOnID: "a"},
		{TaskID: "t1", DependsOnID: "b"},
	}}
	task.FillDependsOn()
	if len(task.DependsOn) != 2 || task.DependsOn[0] != "a" || task.DependsOn[1] != "b" {
		t.Errorf("DependsOn = %v, want [a b]", task.DependsOn)
	}

	empty := Task{}
	empty.FillDependsOn()
	if empty.DependsOn == nil || len(empty.DependsOn) != 0 {
		t.Errorf("DependsOn = %#v, want empty non-nil slice", empty.DependsOn)
	}
}

func TestValidStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"planned", true},
		{"in_progress", true},
		{"blocked", true},
		{"done", true},
		{"open", false},
		{"", false},
		{"DONE", false},
	}
	for _, tt := range tests {
		if got := ValidStatus(tt.status); got != tt.want {
			t.Errorf("ValidStatus(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestDigestRun_Fields(t *testing.T) {
	typ := reflect.TypeOf(DigestRun{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ProjectID", "idx_digest_run_slot")
	assertGormTag(t, typ, "Slot", "idx_digest_run_slot")
	assertGormTag(t, typ, "Status", "index")

	assertFieldType(t, typ, "Slot", "time.Time")
	assertFieldType(t, typ, "CompletedAt", "*time.Time")
}
