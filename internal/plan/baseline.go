package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/planyard/internal/dates"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// Date kinds for Variance.
const (
	KindStart = "start"
	KindDue   = "due"
)

// Variance bands, for presentation only.
const (
	BandAhead   = "ahead"
	BandOnTrack = "on_track"
	BandMinor   = "minor_slip"
	BandMajor   = "major_slip"
)

// BaselineOpts selects the tasks of a baseline operation. An empty TaskIDs
// targets every task of the plan.
type BaselineOpts struct {
	ProjectID string
	PlanID    string
	TaskIDs   []string
}

// SetBaseline snapshots start_at and due_at into the baseline columns and
// stamps baseline_set_at, overwriting any earlier baseline. Returns the
// number of rows written.
func SetBaseline(db *gorm.DB, opts BaselineOpts) (int, error) {
	return writeBaseline(db, opts, func() map[string]interface{} {
		return map[string]interface{}{
			"baseline_start":  gorm.Expr("start_at"),
			"baseline_due":    gorm.Expr("due_at"),
			"baseline_set_at": timeNow(),
			"version":         gorm.Expr("version + 1"),
		}
	})
}

// ClearBaseline resets the baseline columns to NULL.
func ClearBaseline(db *gorm.DB, opts BaselineOpts) (int, error) {
	return writeBaseline(db, opts, func() map[string]interface{} {
		return map[string]interface{}{
			"baseline_start":  nil,
			"baseline_due":    nil,
			"baseline_set_at": nil,
			"version":         gorm.Expr("version + 1"),
		}
	})
}

func writeBaseline(db *gorm.DB, opts BaselineOpts, updates func() map[string]interface{}) (int, error) {
	if err := required("projectId", opts.ProjectID); err != nil {
		return 0, err
	}
	for i, id := range opts.TaskIDs {
		if id == "" {
			return 0, invalid(fmt.Sprintf("taskIds[%d]", i), "is blank")
		}
	}
	planID, err := resolvePlanID(db, opts.ProjectID, opts.PlanID)
	if err != nil {
		return 0, err
	}

	var updated int64
	err = db.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Task{}).Where("project_id = ? AND plan_id = ?", opts.ProjectID, planID)
		if len(opts.TaskIDs) > 0 {
			if err := checkTasksExist(tx, opts.ProjectID, planID, opts.TaskIDs); err != nil {
				return err
			}
			q = q.Where("id IN ?", opts.TaskIDs)
		}
		result := q.Updates(updates())
		if result.Error != nil {
			return fmt.Errorf("plan: write baseline: %w", result.Error)
		}
		updated = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(updated), nil
}

// checkTasksExist returns ErrNotFound naming every id that is not a task of
// the plan.
func checkTasksExist(tx *gorm.DB, projectID, planID string, ids []string) error {
	var found []string
	if err := tx.Model(&models.Task{}).
		Where("project_id = ? AND plan_id = ? AND id IN ?", projectID, planID, ids).
		Pluck("id", &found).Error; err != nil {
		return fmt.Errorf("plan: look up tasks: %w", err)
	}
	present := make(map[string]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
			present[id] = true
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("plan: tasks %s: %w", strings.Join(missing, ", "), ErrNotFound)
	}
	return nil
}

// Variance returns the signed day difference between a task's current date
// and its baseline for the given kind. Positive means later than baseline.
// ok is false when either date is absent or the kind is unknown.
func Variance(t *models.Task, kind string) (days int, ok bool) {
	switch kind {
	case KindStart:
		return dates.DayDiff(t.StartAt, t.BaselineStart)
	case KindDue:
		return dates.DayDiff(t.DueAt, t.BaselineDue)
	}
	return 0, false
}

// Band buckets a variance for display.
func Band(v int) string {
	switch {
	case v <= -2:
		return BandAhead
	case v <= 0:
		return BandOnTrack
	case v <= 2:
		return BandMinor
	default:
		return BandMajor
	}
}

// VarianceRow is one task's drift from its baseline. Nil means undefined.
type VarianceRow struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
	Start  *int   `json:"start"`
	Due    *int   `json:"due"`
}

// VarianceReport computes start and due variance for every task of the plan,
// in plan order. An empty planID reports on the active plan.
func VarianceReport(db *gorm.DB, projectID, planID string) ([]VarianceRow, error) {
	tasks, err := ListTasks(db, projectID, planID)
	if err != nil {
		return nil, err
	}
	rows := make([]VarianceRow, 0, len(tasks))
	for i := range tasks {
		row := VarianceRow{TaskID: tasks[i].ID, Title: tasks[i].Title}
		if v, ok := Variance(&tasks[i], KindStart); ok {
			row.Start = &v
		}
		if v, ok := Variance(&tasks[i], KindDue); ok {
			row.Due = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
