package models

import "time"

// Plan is a versioned container of tasks for a project. At most one plan per
// project is active at a time.
type Plan struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:64;not null;index:idx_plan_project_active" json:"projectId"`
	Title     string    `gorm:"not null" json:"title"`
	Version   int       `gorm:"not null" json:"version"`
	IsActive  bool      `gorm:"default:false;index:idx_plan_project_active" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`

	Tasks []Task `gorm:"foreignKey:PlanID" json:"-"`
}
