package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/planyard/internal/dates"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// Bump bounds, in days.
const (
	MinBumpDays = 1
	MaxBumpDays = 60
)

// TaskInput is one element of an upsert. Nil fields are left unchanged on
// update; on insert Title and Module are required.
type TaskInput struct {
	ID            string     `json:"id,omitempty" yaml:"id"`
	Title         *string    `json:"title,omitempty" yaml:"title"`
	Module        *string    `json:"module,omitempty" yaml:"module"`
	PhaseID       *string    `json:"phaseId,omitempty" yaml:"phase_id"`
	Description   *string    `json:"description,omitempty" yaml:"description"`
	Owner         *string    `json:"owner,omitempty" yaml:"owner"`
	StartAt       *time.Time `json:"startAt,omitempty" yaml:"start_at"`
	DueAt         *time.Time `json:"dueAt,omitempty" yaml:"due_at"`
	Status        *string    `json:"status,omitempty" yaml:"status"`
	Priority      *int       `json:"priority,omitempty" yaml:"priority"`
	OrderIndex    *int       `json:"orderIndex,omitempty" yaml:"order_index"`
	Source        *string    `json:"source,omitempty" yaml:"source"`
	OriginType    *string    `json:"originType,omitempty" yaml:"origin_type"`
	OriginID      *string    `json:"originId,omitempty" yaml:"origin_id"`
	ActionID      *string    `json:"actionId,omitempty" yaml:"action_id"`
	RoadmapItemID *string    `json:"roadmapItemId,omitempty" yaml:"roadmap_item_id"`
	TicketID      *string    `json:"ticketId,omitempty" yaml:"ticket_id"`
	DependsOn     *[]string  `json:"dependsOn,omitempty" yaml:"depends_on"`

	// Clear names nullable fields to reset to NULL on update.
	Clear []string `json:"clear,omitempty" yaml:"clear"`
	// Version, when non-zero, makes the update conditional on the stored
	// version (compare-and-swap).
	Version int `json:"version,omitempty" yaml:"version"`
}

// clearable maps the names accepted in TaskInput.Clear to columns.
var clearable = map[string]string{
	"phaseId":     "phase_id",
	"description": "description",
	"owner":       "owner",
	"startAt":     "start_at",
	"dueAt":       "due_at",
	"ticketId":    "ticket_id",
	"snoozeUntil": "snooze_until",
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	IDs     []string `json:"ids"`
}

// UpsertTasks inserts or updates tasks of a plan in one transaction. An input
// whose id exists in the plan is updated; any other input is inserted, keeping
// a client-supplied id so that drafted dependency references resolve. New
// tasks without an order index are appended after the plan's last task.
func UpsertTasks(db *gorm.DB, projectID, planID string, inputs []TaskInput) (*UpsertResult, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	if err := required("planId", planID); err != nil {
		return nil, err
	}
	for i, in := range inputs {
		if err := in.validate(i); err != nil {
			return nil, err
		}
	}
	if _, err := ResolvePlan(db, projectID, planID); err != nil {
		return nil, err
	}

	res := &UpsertResult{IDs: make([]string, 0, len(inputs))}
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing []models.Task
		if err := tx.Select("id", "order_index").
			Where("project_id = ? AND plan_id = ?", projectID, planID).
			Find(&existing).Error; err != nil {
			return fmt.Errorf("plan: load existing tasks: %w", err)
		}
		inPlan := make(map[string]bool, len(existing))
		nextIndex := 0
		for _, t := range existing {
			inPlan[t.ID] = true
			if t.OrderIndex >= nextIndex {
				nextIndex = t.OrderIndex + 1
			}
		}

		for i, in := range inputs {
			if in.ID != "" && inPlan[in.ID] {
				if err := updateTask(tx, projectID, planID, in); err != nil {
					return err
				}
				res.Updated++
				res.IDs = append(res.IDs, in.ID)
				continue
			}

			if in.ID != "" {
				var count int64
				if err := tx.Model(&models.Task{}).Where("id = ?", in.ID).Count(&count).Error; err != nil {
					return fmt.Errorf("plan: check task id %s: %w", in.ID, err)
				}
				if count > 0 {
					return invalid(fmt.Sprintf("tasks[%d].id", i), "%s belongs to another plan", in.ID)
				}
			}

			t, err := in.newTask(i, projectID, planID)
			if err != nil {
				return err
			}
			if in.OrderIndex == nil {
				t.OrderIndex = nextIndex
				nextIndex++
			} else if t.OrderIndex >= nextIndex {
				nextIndex = t.OrderIndex + 1
			}
			if err := tx.Create(t).Error; err != nil {
				return fmt.Errorf("plan: create task %q: %w", t.Title, err)
			}
			if in.DependsOn != nil {
				if err := replaceDeps(tx, t.ID, *in.DependsOn); err != nil {
					return err
				}
			}
			inPlan[t.ID] = true
			res.Created++
			res.IDs = append(res.IDs, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (in TaskInput) validate(i int) error {
	field := func(name string) string { return fmt.Sprintf("tasks[%d].%s", i, name) }
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return invalid(field("status"), "%q is not one of %s", *in.Status, strings.Join(models.Statuses, ", "))
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return invalid(field("title"), "must not be blank")
	}
	if in.Module != nil && strings.TrimSpace(*in.Module) == "" {
		return invalid(field("module"), "must not be blank")
	}
	if in.OrderIndex != nil && *in.OrderIndex < 0 {
		return invalid(field("orderIndex"), "must not be negative")
	}
	for _, name := range in.Clear {
		if _, ok := clearable[name]; !ok {
			return invalid(field("clear"), "%q cannot be cleared", name)
		}
	}
	return nil
}

func (in TaskInput) newTask(i int, projectID, planID string) (*models.Task, error) {
	if in.Title == nil {
		return nil, invalid(fmt.Sprintf("tasks[%d].title", i), "is required")
	}
	if in.Module == nil {
		return nil, invalid(fmt.Sprintf("tasks[%d].module", i), "is required")
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	t := &models.Task{
		ID:            id,
		ProjectID:     projectID,
		PlanID:        planID,
		PhaseID:       in.PhaseID,
		Title:         strings.TrimSpace(*in.Title),
		Module:        strings.TrimSpace(*in.Module),
		Description:   in.Description,
		Owner:         blankToNil(in.Owner),
		StartAt:       utc(in.StartAt),
		DueAt:         utc(in.DueAt),
		Status:        models.StatusPlanned,
		Priority:      models.DefaultPriority,
		Source:        "manual",
		OriginType:    in.OriginType,
		OriginID:      in.OriginID,
		ActionID:      in.ActionID,
		RoadmapItemID: in.RoadmapItemID,
		TicketID:      blankToNil(in.TicketID),
		Version:       1,
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.OrderIndex != nil {
		t.OrderIndex = *in.OrderIndex
	}
	if in.Source != nil && *in.Source != "" {
		t.Source = *in.Source
	}
	return t, nil
}

func updateTask(tx *gorm.DB, projectID, planID string, in TaskInput) error {
	updates := map[string]interface{}{}
	set := func(col string, v interface{}) { updates[col] = v }
	if in.Title != nil {
		set("title", strings.TrimSpace(*in.Title))
	}
	if in.Module != nil {
		set("module", strings.TrimSpace(*in.Module))
	}
	if in.PhaseID != nil {
		set("phase_id", *in.PhaseID)
	}
	if in.Description != nil {
		set("description", *in.Description)
	}
	if in.Owner != nil {
		set("owner", blankToNil(in.Owner))
	}
	if in.StartAt != nil {
		set("start_at", in.StartAt.UTC())
	}
	if in.DueAt != nil {
		set("due_at", in.DueAt.UTC())
	}
	if in.Status != nil {
		set("status", *in.Status)
	}
	if in.Priority != nil {
		set("priority", *in.Priority)
	}
	if in.OrderIndex != nil {
		set("order_index", *in.OrderIndex)
	}
	if in.Source != nil && *in.Source != "" {
		set("source", *in.Source)
	}
	if in.OriginType != nil {
		set("origin_type", *in.OriginType)
	}
	if in.OriginID != nil {
		set("origin_id", *in.OriginID)
	}
	if in.ActionID != nil {
		set("action_id", *in.ActionID)
	}
	if in.RoadmapItemID != nil {
		set("roadmap_item_id", *in.RoadmapItemID)
	}
	if in.TicketID != nil {
		set("ticket_id", blankToNil(in.TicketID))
	}
	for _, name := range in.Clear {
		set(clearable[name], nil)
	}

	if len(updates) > 0 || in.DependsOn != nil {
		updates["version"] = gorm.Expr("version + 1")
		q := tx.Model(&models.Task{}).Where("id = ? AND project_id = ? AND plan_id = ?", in.ID, projectID, planID)
		if in.Version != 0 {
			q = q.Where("version = ?", in.Version)
		}
		result := q.Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("plan: update task %s: %w", in.ID, result.Error)
		}
		if in.Version != 0 && result.RowsAffected == 0 {
			return fmt.Errorf("plan: update task %s at version %d: %w", in.ID, in.Version, ErrConflict)
		}
	}
	if in.DependsOn != nil {
		return replaceDeps(tx, in.ID, *in.DependsOn)
	}
	return nil
}

// replaceDeps swaps the task's edge set for ids, dropping blanks and
// duplicates. Referenced ids are not checked.
func replaceDeps(tx *gorm.DB, taskID string, ids []string) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskDep{}).Error; err != nil {
		return fmt.Errorf("plan: clear dependencies of %s: %w", taskID, err)
	}
	deps := make([]models.TaskDep, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		deps = append(deps, models.TaskDep{TaskID: taskID, DependsOnID: id})
	}
	if len(deps) == 0 {
		return nil
	}
	if err := tx.Create(&deps).Error; err != nil {
		return fmt.Errorf("plan: write dependencies of %s: %w", taskID, err)
	}
	return nil
}

// GetTask retrieves a task of the project by ID, with its dependencies.
func GetTask(db *gorm.DB, projectID, taskID string) (*models.Task, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	if err := required("taskId", taskID); err != nil {
		return nil, err
	}
	var t models.Task
	if err := db.Preload("Deps").Where("id = ? AND project_id = ?", taskID, projectID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: task %s in project %s: %w", taskID, projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("plan: get task %s: %w", taskID, err)
	}
	t.FillDependsOn()
	return &t, nil
}

// ListTasks returns the plan's tasks ordered by (order_index, created_at).
// An empty planID lists the active plan.
func ListTasks(db *gorm.DB, projectID, planID string) ([]models.Task, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	planID, err := resolvePlanID(db, projectID, planID)
	if err != nil {
		return nil, err
	}
	return loadPlanTasks(db, projectID, planID)
}

func loadPlanTasks(db *gorm.DB, projectID, planID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := db.Preload("Deps").
		Where("project_id = ? AND plan_id = ?", projectID, planID).
		Order("order_index ASC, created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("plan: load tasks of %s: %w", planID, err)
	}
	for i := range tasks {
		tasks[i].FillDependsOn()
	}
	return tasks, nil
}

// SetDependencies replaces the task's dependency set. An empty list clears
// it. Referenced ids are stored as given, even when they do not exist.
func SetDependencies(db *gorm.DB, projectID, taskID string, dependsOn []string) error {
	t, err := GetTask(db, projectID, taskID)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := replaceDeps(tx, t.ID, dependsOn); err != nil {
			return err
		}
		if err := tx.Model(&models.Task{}).Where("id = ?", t.ID).
			Update("version", gorm.Expr("version + 1")).Error; err != nil {
			return fmt.Errorf("plan: touch task %s: %w", t.ID, err)
		}
		return nil
	})
}

// Reorder assigns order_index 0, 1, 2, ... to ids in the order given. Tasks
// of the plan not named keep their index. Returns the number of rows written.
func Reorder(db *gorm.DB, projectID, planID string, ids []string) (int, error) {
	if err := required("projectId", projectID); err != nil {
		return 0, err
	}
	for i, id := range ids {
		if id == "" {
			return 0, invalid(fmt.Sprintf("ids[%d]", i), "is blank")
		}
	}
	planID, err := resolvePlanID(db, projectID, planID)
	if err != nil {
		return 0, err
	}

	updated := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			result := tx.Model(&models.Task{}).
				Where("id = ? AND project_id = ? AND plan_id = ?", id, projectID, planID).
				Updates(map[string]interface{}{
					"order_index": i,
					"version":     gorm.Expr("version + 1"),
				})
			if result.Error != nil {
				return fmt.Errorf("plan: reorder task %s: %w", id, result.Error)
			}
			updated += int(result.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Bump pushes a single task's due date out by days, clamped to
// [MinBumpDays, MaxBumpDays]. The base is the current due date, or now when
// the task has none. Start date and dependents are untouched.
func Bump(db *gorm.DB, projectID, taskID string, days int) (time.Time, error) {
	days = dates.Clamp(days, MinBumpDays, MaxBumpDays)
	t, err := GetTask(db, projectID, taskID)
	if err != nil {
		return time.Time{}, err
	}
	base := timeNow()
	if t.DueAt != nil {
		base = *t.DueAt
	}
	due := dates.AddDays(base, days)
	if err := db.Model(&models.Task{}).Where("id = ? AND project_id = ?", taskID, projectID).
		Updates(map[string]interface{}{
			"due_at":  due,
			"version": gorm.Expr("version + 1"),
		}).Error; err != nil {
		return time.Time{}, fmt.Errorf("plan: bump task %s: %w", taskID, err)
	}
	return due, nil
}

// Snooze sets the task's snooze_until, or clears it when until is nil.
func Snooze(db *gorm.DB, projectID, taskID string, until *time.Time) error {
	if _, err := GetTask(db, projectID, taskID); err != nil {
		return err
	}
	var value interface{}
	if until != nil {
		value = until.UTC()
	}
	if err := db.Model(&models.Task{}).Where("id = ? AND project_id = ?", taskID, projectID).
		Updates(map[string]interface{}{
			"snooze_until": value,
			"version":      gorm.Expr("version + 1"),
		}).Error; err != nil {
		return fmt.Errorf("plan: snooze task %s: %w", taskID, err)
	}
	return nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
