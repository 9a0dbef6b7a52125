// Package plan implements the project plan scheduling engine: the plan
// registry, task store operations, cascading date shifts, baselines and
// predicate-driven bulk mutation.
//
// Every function takes a *gorm.DB. Callers bound the statements with a
// deadline by passing a handle from db.Scoped.
package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// timeNow is the engine clock. Tests replace it.
var timeNow = func() time.Time { return time.Now().UTC() }

// CreatePlanOpts holds parameters for creating a new plan.
type CreatePlanOpts struct {
	ProjectID string
	Title     string
}

// PlanView is a plan together with its ordered tasks and any non-blocking
// dependency graph warnings.
type PlanView struct {
	Plan     models.Plan   `json:"plan"`
	Tasks    []models.Task `json:"tasks"`
	Warnings []Warning     `json:"warnings"`
}

// CreatePlan creates a new plan for the project, makes it the active plan and
// deactivates every other plan of the project. The version is one more than
// the project's highest existing version.
func CreatePlan(db *gorm.DB, opts CreatePlanOpts) (*models.Plan, error) {
	if err := required("projectId", opts.ProjectID); err != nil {
		return nil, err
	}
	if err := required("title", opts.Title); err != nil {
		return nil, err
	}

	p := models.Plan{
		ID:        uuid.NewString(),
		ProjectID: opts.ProjectID,
		Title:     opts.Title,
		IsActive:  true,
		CreatedAt: timeNow(),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		if err := tx.Model(&models.Plan{}).
			Where("project_id = ?", opts.ProjectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return fmt.Errorf("plan: read max version: %w", err)
		}
		p.Version = maxVersion + 1

		if err := deactivateOthers(tx, opts.ProjectID, ""); err != nil {
			return err
		}
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("plan: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActivatePlan makes an existing plan the project's active plan.
func ActivatePlan(db *gorm.DB, projectID, planID string) (*models.Plan, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	if err := required("planId", planID); err != nil {
		return nil, err
	}

	var p models.Plan
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND project_id = ?", planID, projectID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("plan: %s in project %s: %w", planID, projectID, ErrNotFound)
			}
			return fmt.Errorf("plan: get %s: %w", planID, err)
		}
		if err := deactivateOthers(tx, projectID, planID); err != nil {
			return err
		}
		if err := tx.Model(&models.Plan{}).Where("id = ?", planID).Update("is_active", true).Error; err != nil {
			return fmt.Errorf("plan: activate %s: %w", planID, err)
		}
		p.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func deactivateOthers(tx *gorm.DB, projectID, keepID string) error {
	q := tx.Model(&models.Plan{}).Where("project_id = ? AND is_active = ?", projectID, true)
	if keepID != "" {
		q = q.Where("id <> ?", keepID)
	}
	if err := q.Update("is_active", false).Error; err != nil {
		return fmt.Errorf("plan: deactivate plans of %s: %w", projectID, err)
	}
	return nil
}

// ActivePlan returns the project's most recently created active plan. It is
// always read from the store, never cached.
func ActivePlan(db *gorm.DB, projectID string) (*models.Plan, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	var p models.Plan
	if err := db.Where("project_id = ? AND is_active = ?", projectID, true).
		Order("created_at DESC, version DESC").
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: project %s: %w", projectID, ErrNoActivePlan)
		}
		return nil, fmt.Errorf("plan: active plan of %s: %w", projectID, err)
	}
	return &p, nil
}

// ResolvePlan returns the named plan when planID is set, or the project's
// active plan otherwise.
func ResolvePlan(db *gorm.DB, projectID, planID string) (*models.Plan, error) {
	if planID == "" {
		return ActivePlan(db, projectID)
	}
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	var p models.Plan
	if err := db.Where("id = ? AND project_id = ?", planID, projectID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("plan: %s in project %s: %w", planID, projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("plan: get %s: %w", planID, err)
	}
	return &p, nil
}

// resolvePlanID returns planID unchanged when set and the active plan's id
// otherwise. Unlike ResolvePlan it does not verify an explicit id.
func resolvePlanID(db *gorm.DB, projectID, planID string) (string, error) {
	if planID != "" {
		return planID, nil
	}
	p, err := ActivePlan(db, projectID)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// ListPlans returns every plan of the project, newest first.
func ListPlans(db *gorm.DB, projectID string) ([]models.Plan, error) {
	if err := required("projectId", projectID); err != nil {
		return nil, err
	}
	var plans []models.Plan
	if err := db.Where("project_id = ?", projectID).
		Order("created_at DESC, version DESC").
		Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("plan: list plans of %s: %w", projectID, err)
	}
	return plans, nil
}

// GetActive returns the project's active plan with its tasks ordered by
// (order_index, created_at) and the graph warnings for those tasks.
func GetActive(db *gorm.DB, projectID string) (*PlanView, error) {
	p, err := ActivePlan(db, projectID)
	if err != nil {
		return nil, err
	}
	return view(db, p)
}

// Get returns the named plan with its tasks, or the active plan when planID
// is empty.
func Get(db *gorm.DB, projectID, planID string) (*PlanView, error) {
	p, err := ResolvePlan(db, projectID, planID)
	if err != nil {
		return nil, err
	}
	return view(db, p)
}

func view(db *gorm.DB, p *models.Plan) (*PlanView, error) {
	tasks, err := loadPlanTasks(db, p.ProjectID, p.ID)
	if err != nil {
		return nil, err
	}
	return &PlanView{Plan: *p, Tasks: tasks, Warnings: CheckGraph(tasks)}, nil
}
