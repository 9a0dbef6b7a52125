package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/planyard/internal/dates"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// Bounds for Filter.DueWithinDays.
const (
	MinDueWithinDays = 1
	MaxDueWithinDays = 60
)

// Filter is a conjunctive predicate over a plan's tasks. Zero-valued fields
// do not constrain the match.
type Filter struct {
	OwnerContains string `json:"ownerContains,omitempty" yaml:"owner_contains"`
	Status        string `json:"status,omitempty" yaml:"status"`
	HasTicket     *bool  `json:"hasTicket,omitempty" yaml:"has_ticket"`
	Overdue       bool   `json:"overdue,omitempty" yaml:"overdue"`
	DueWithinDays int    `json:"dueWithinDays,omitempty" yaml:"due_within_days"`
	Q             string `json:"q,omitempty" yaml:"q"`

	// Now anchors Overdue and DueWithinDays. Zero means the engine clock.
	Now time.Time `json:"-" yaml:"-"`
}

// Validate checks the filter's values.
func (f Filter) Validate() error {
	if f.Status != "" && !models.ValidStatus(f.Status) {
		return invalid("filter.status", "%q is not one of %s", f.Status, strings.Join(models.Statuses, ", "))
	}
	if f.DueWithinDays != 0 && (f.DueWithinDays < MinDueWithinDays || f.DueWithinDays > MaxDueWithinDays) {
		return invalid("filter.dueWithinDays", "must be between %d and %d, got %d", MinDueWithinDays, MaxDueWithinDays, f.DueWithinDays)
	}
	return nil
}

// FieldSet names the fields a bulk update writes. An empty Owner clears the
// owner.
type FieldSet struct {
	Owner  *string `json:"owner,omitempty" yaml:"owner"`
	Status *string `json:"status,omitempty" yaml:"status"`
}

// Empty reports whether the set carries no field to write.
func (s FieldSet) Empty() bool {
	return s.Owner == nil && s.Status == nil
}

// Validate checks the field values.
func (s FieldSet) Validate() error {
	if s.Status != nil && !models.ValidStatus(*s.Status) {
		return invalid("set.status", "%q is not one of %s", *s.Status, strings.Join(models.Statuses, ", "))
	}
	return nil
}

func (s FieldSet) updates() map[string]interface{} {
	updates := map[string]interface{}{
		"version": gorm.Expr("version + 1"),
	}
	if s.Owner != nil {
		updates["owner"] = blankToNil(s.Owner)
	}
	if s.Status != nil {
		updates["status"] = *s.Status
	}
	return updates
}

// BulkUpdateByFilter writes set to every task of the plan matching f in a
// single UPDATE statement and returns the number of rows written. An empty
// planID targets the project's active plan. A set with no fields returns 0
// without touching the store.
func BulkUpdateByFilter(db *gorm.DB, projectID, planID string, f Filter, set FieldSet) (int, error) {
	if err := required("projectId", projectID); err != nil {
		return 0, err
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	if err := set.Validate(); err != nil {
		return 0, err
	}
	if set.Empty() {
		return 0, nil
	}
	planID, err := resolvePlanID(db, projectID, planID)
	if err != nil {
		return 0, err
	}

	q := applyFilter(db.Model(&models.Task{}).Where("project_id = ? AND plan_id = ?", projectID, planID), f)
	result := q.Updates(set.updates())
	if result.Error != nil {
		return 0, fmt.Errorf("plan: bulk update by filter: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// BulkUpdateByIDs writes set to the named tasks of the plan in a single
// UPDATE statement. Ids that match nothing are skipped.
func BulkUpdateByIDs(db *gorm.DB, projectID, planID string, ids []string, set FieldSet) (int, error) {
	if err := required("projectId", projectID); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, invalid("ids", "must name at least one task")
	}
	if err := set.Validate(); err != nil {
		return 0, err
	}
	if set.Empty() {
		return 0, nil
	}
	planID, err := resolvePlanID(db, projectID, planID)
	if err != nil {
		return 0, err
	}

	result := db.Model(&models.Task{}).
		Where("project_id = ? AND plan_id = ? AND id IN ?", projectID, planID, ids).
		Updates(set.updates())
	if result.Error != nil {
		return 0, fmt.Errorf("plan: bulk update by ids: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// MatchTasks returns the tasks of the plan a filter selects, in plan order,
// without writing anything.
func MatchTasks(db *gorm.DB, projectID, planID string, f Filter) ([]models.Task, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	planID, err := resolvePlanID(db, projectID, planID)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	q := applyFilter(db.Preload("Deps").Where("project_id = ? AND plan_id = ?", projectID, planID), f)
	if err := q.Order("order_index ASC, created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("plan: match tasks: %w", err)
	}
	for i := range tasks {
		tasks[i].FillDependsOn()
	}
	return tasks, nil
}

func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	now := f.Now.UTC()
	if f.Now.IsZero() {
		now = timeNow()
	}
	if f.OwnerContains != "" {
		q = q.Where("LOWER(owner) LIKE ? ESCAPE '!'", likePattern(f.OwnerContains))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.HasTicket != nil {
		if *f.HasTicket {
			q = q.Where("ticket_id IS NOT NULL")
		} else {
			q = q.Where("ticket_id IS NULL")
		}
	}
	if f.Overdue {
		q = q.Where("status <> ? AND due_at IS NOT NULL AND due_at < ?", models.StatusDone, now)
	}
	if f.DueWithinDays != 0 {
		q = q.Where("status <> ? AND due_at IS NOT NULL AND due_at >= ? AND due_at <= ?",
			models.StatusDone, now, dates.AddDays(now, f.DueWithinDays))
	}
	if f.Q != "" {
		q = q.Where("LOWER("+searchText(q)+") LIKE ? ESCAPE '!'", likePattern(f.Q))
	}
	return q
}

// searchText is the dialect's expression for "title module owner".
func searchText(q *gorm.DB) string {
	if q.Dialector != nil && q.Dialector.Name() == "mysql" {
		return "CONCAT_WS(' ', title, module, owner)"
	}
	return "title || ' ' || module || ' ' || COALESCE(owner, '')"
}

// likePattern lowercases s, escapes LIKE wildcards with '!' and wraps it for
// a substring match.
func likePattern(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}
