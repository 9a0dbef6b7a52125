package plan

import (
	"fmt"

	"github.com/zulandar/planyard/internal/dates"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// ShiftOpts holds parameters for a cascade shift.
type ShiftOpts struct {
	ProjectID  string
	PlanID     string
	FromTaskID string
	DeltaDays  int
	Cascade    bool
}

// ShiftResult reports the outcome of a shift. AffectedIDs lists every task
// reached, in discovery order; Updated counts the rows that had a date to
// move and were written.
type ShiftResult struct {
	Updated     int      `json:"updated"`
	AffectedIDs []string `json:"affectedIds"`
}

// Shift moves the anchor task's dates by DeltaDays and, when Cascade is set,
// the dates of every task that transitively depends on it. Each task moves at
// most once. An anchor that is not in the plan yields an empty result and no
// error. All writes share one transaction.
func Shift(db *gorm.DB, opts ShiftOpts) (*ShiftResult, error) {
	if err := required("projectId", opts.ProjectID); err != nil {
		return nil, err
	}
	if err := required("planId", opts.PlanID); err != nil {
		return nil, err
	}
	if err := required("fromTaskId", opts.FromTaskID); err != nil {
		return nil, err
	}

	res := &ShiftResult{AffectedIDs: []string{}}
	err := db.Transaction(func(tx *gorm.DB) error {
		tasks, err := loadPlanTasks(tx, opts.ProjectID, opts.PlanID)
		if err != nil {
			return err
		}
		byID := make(map[string]*models.Task, len(tasks))
		for i := range tasks {
			byID[tasks[i].ID] = &tasks[i]
		}
		if byID[opts.FromTaskID] == nil {
			return nil
		}

		visited := reach(tasks, opts.FromTaskID, opts.Cascade)
		res.AffectedIDs = visited
		if opts.DeltaDays == 0 {
			return nil
		}

		for _, id := range visited {
			t := byID[id]
			updates := map[string]interface{}{}
			if start := dates.Shift(t.StartAt, opts.DeltaDays); start != nil {
				updates["start_at"] = *start
			}
			if due := dates.Shift(t.DueAt, opts.DeltaDays); due != nil {
				updates["due_at"] = *due
			}
			if len(updates) == 0 {
				continue
			}
			updates["version"] = gorm.Expr("version + 1")
			if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("plan: shift task %s: %w", id, err)
			}
			res.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// reach returns the ids visited by a breadth-first walk from anchor along
// dependency -> dependent edges. Without cascade only the anchor is visited.
func reach(tasks []models.Task, anchor string, cascade bool) []string {
	order := []string{anchor}
	if !cascade {
		return order
	}

	dependents := make(map[string][]string)
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	visited := map[string]bool{anchor: true}
	for i := 0; i < len(order); i++ {
		for _, next := range dependents[order[i]] {
			if visited[next] {
				continue
			}
			visited[next] = true
			order = append(order, next)
		}
	}
	return order
}
