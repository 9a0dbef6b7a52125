// Package digest reports overdue and soon-due work for every project with an
// active plan and posts it to chat channels on a cron schedule.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/plan"
	"gorm.io/gorm"
)

// Report is one project's digest.
type Report struct {
	ProjectID   string
	PlanID      string
	PlanTitle   string
	Overdue     []models.Task
	DueSoon     []models.Task
	Snoozed     int
	WithinDays  int
	GeneratedAt time.Time
}

// Empty reports whether there is nothing to tell.
func (r *Report) Empty() bool {
	return len(r.Overdue) == 0 && len(r.DueSoon) == 0
}

// ActiveProjects returns the projects that have an active plan, sorted.
func ActiveProjects(db *gorm.DB) ([]string, error) {
	var ids []string
	if err := db.Model(&models.Plan{}).
		Where("is_active = ?", true).
		Distinct("project_id").
		Order("project_id").
		Pluck("project_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("digest: list active projects: %w", err)
	}
	return ids, nil
}

// Build assembles the digest for a project's active plan. Done tasks never
// appear. Tasks snoozed past now are counted but left out.
func Build(db *gorm.DB, projectID string, withinDays int, now time.Time) (*Report, error) {
	p, err := plan.ActivePlan(db, projectID)
	if err != nil {
		return nil, err
	}
	overdue, err := plan.MatchTasks(db, projectID, p.ID, plan.Filter{Overdue: true, Now: now})
	if err != nil {
		return nil, err
	}
	soon, err := plan.MatchTasks(db, projectID, p.ID, plan.Filter{DueWithinDays: withinDays, Now: now})
	if err != nil {
		return nil, err
	}

	r := &Report{
		ProjectID:   projectID,
		PlanID:      p.ID,
		PlanTitle:   p.Title,
		WithinDays:  withinDays,
		GeneratedAt: now,
	}
	r.Overdue = r.dropSnoozed(overdue, now)
	r.DueSoon = r.dropSnoozed(soon, now)
	return r, nil
}

func (r *Report) dropSnoozed(tasks []models.Task, now time.Time) []models.Task {
	kept := tasks[:0]
	for _, t := range tasks {
		if t.SnoozeUntil != nil && t.SnoozeUntil.After(now) {
			r.Snoozed++
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// Format renders the report as plain text suitable for Slack or Discord.
func Format(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan digest for %s (%s)\n", r.ProjectID, r.PlanTitle)
	if r.Empty() {
		b.WriteString("Nothing overdue or due soon.\n")
	}
	if len(r.Overdue) > 0 {
		fmt.Fprintf(&b, "\nOverdue (%d):\n", len(r.Overdue))
		for _, t := range r.Overdue {
			days := int(r.GeneratedAt.Sub(*t.DueAt).Hours() / 24)
			fmt.Fprintf(&b, "- %s [%s]%s, due %s (%s late)\n",
				t.Title, t.Module, ownerSuffix(t), t.DueAt.Format(time.DateOnly), plural(days, "day"))
		}
	}
	if len(r.DueSoon) > 0 {
		fmt.Fprintf(&b, "\nDue in the next %s (%d):\n", plural(r.WithinDays, "day"), len(r.DueSoon))
		for _, t := range r.DueSoon {
			fmt.Fprintf(&b, "- %s [%s]%s, due %s\n", t.Title, t.Module, ownerSuffix(t), t.DueAt.Format(time.DateOnly))
		}
	}
	if r.Snoozed > 0 {
		fmt.Fprintf(&b, "\n%s snoozed.\n", plural(r.Snoozed, "task"))
	}
	return b.String()
}

func ownerSuffix(t models.Task) string {
	if t.Owner == nil {
		return ""
	}
	return " @" + *t.Owner
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
