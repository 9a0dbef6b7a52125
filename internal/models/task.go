package models

import "time"

// Task statuses.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusBlocked    = "blocked"
	StatusDone       = "done"
)

// Statuses lists every valid task status.
var Statuses = []string{StatusPlanned, StatusInProgress, StatusBlocked, StatusDone}

// DefaultPriority is applied when a task is created without a priority.
const DefaultPriority = 50

// Task is a schedulable unit of work inside a plan.
type Task struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	ProjectID     string     `gorm:"size:64;not null;index:idx_task_project_plan" json:"projectId"`
	PlanID        string     `gorm:"size:36;not null;index:idx_task_project_plan" json:"planId"`
	PhaseID       *string    `gorm:"size:64" json:"phaseId,omitempty"`
	Title         string     `gorm:"not null" json:"title"`
	Module        string     `gorm:"size:64;not null" json:"module"`
	Description   *string    `gorm:"type:text" json:"description,omitempty"`
	Owner         *string    `gorm:"size:128" json:"owner,omitempty"`
	StartAt       *time.Time `json:"startAt,omitempty"`
	DueAt         *time.Time `gorm:"index" json:"dueAt,omitempty"`
	Status        string     `gorm:"size:16;default:planned;index" json:"status"`
	Priority      int        `gorm:"not null" json:"priority"`
	OrderIndex    int        `gorm:"not null" json:"orderIndex"`
	Source        string     `gorm:"size:32;default:manual" json:"source"`
	OriginType    *string    `gorm:"size:32" json:"originType,omitempty"`
	OriginID      *string    `gorm:"size:64" json:"originId,omitempty"`
	ActionID      *string    `gorm:"size:64" json:"actionId,omitempty"`
	RoadmapItemID *string    `gorm:"size:64" json:"roadmapItemId,omitempty"`
	TicketID      *string    `gorm:"size:128" json:"ticketId,omitempty"`
	BaselineStart *time.Time `json:"baselineStart,omitempty"`
	BaselineDue   *time.Time `json:"baselineDue,omitempty"`
	BaselineSetAt *time.Time `json:"baselineSetAt,omitempty"`
	SnoozeUntil   *time.Time `json:"snoozeUntil,omitempty"`
	Version       int        `gorm:"not null;default:1" json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	Deps      []TaskDep `gorm:"foreignKey:TaskID" json:"-"`
	DependsOn []string  `gorm:"-" json:"dependsOn"`
}

// TaskDep records that TaskID depends on DependsOnID. DependsOnID is not a
// foreign key: references to tasks outside the plan, or to tasks that no
// longer exist, are kept as written.
type TaskDep struct {
	TaskID      string `gorm:"primaryKey;size:36"`
	DependsOnID string `gorm:"primaryKey;size:36;index"`
}

// FillDependsOn copies the preloaded edge rows into DependsOn.
func (t *Task) FillDependsOn() {
	t.DependsOn = make([]string, 0, len(t.Deps))
	for _, d := range t.Deps {
		t.DependsOn = append(t.DependsOn, d.DependsOnID)
	}
}

// IsDone reports whether the task is finished.
func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// ValidStatus reports whether s is one of Statuses.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}
