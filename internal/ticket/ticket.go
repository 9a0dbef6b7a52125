// Package ticket opens a GitHub issue for a task and records the reference
// in the task's ticket id.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"github.com/zulandar/planyard/internal/models"
	"github.com/zulandar/planyard/internal/plan"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// ErrAlreadyLinked is returned when the task already carries a ticket id.
var ErrAlreadyLinked = errors.New("task already has a ticket")

// issueCreator abstracts the go-github Issues service method we use.
type issueCreator interface {
	Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
}

// Linker creates issues in one repository.
type Linker struct {
	issues issueCreator
	owner  string
	repo   string
}

// LinkerOpts holds parameters for creating a Linker.
type LinkerOpts struct {
	Owner string
	Repo  string
	Token string
	// For testing: inject a mock instead of the GitHub API.
	Issues issueCreator
}

// NewLinker creates a Linker authenticated with a static token.
func NewLinker(opts LinkerOpts) (*Linker, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("ticket: github owner and repo are required")
	}
	issues := opts.Issues
	if issues == nil {
		if opts.Token == "" {
			return nil, fmt.Errorf("ticket: github token is required")
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient := oauth2.NewClient(context.Background(), src)
		issues = github.NewClient(httpClient).Issues
	}
	return &Linker{issues: issues, owner: opts.Owner, repo: opts.Repo}, nil
}

// Reference formats an issue number as owner/repo#number.
func (l *Linker) Reference(number int) string {
	return fmt.Sprintf("%s/%s#%d", l.owner, l.repo, number)
}

// Link opens an issue for the task and stores its reference in ticket_id.
// The issue is created before the row is written; if the write fails the
// issue remains and the error names it.
func (l *Linker) Link(ctx context.Context, db *gorm.DB, projectID, taskID string) (string, error) {
	t, err := plan.GetTask(db, projectID, taskID)
	if err != nil {
		return "", err
	}
	if t.TicketID != nil {
		return "", fmt.Errorf("ticket: task %s has %s: %w", taskID, *t.TicketID, ErrAlreadyLinked)
	}

	issue, _, err := l.issues.Create(ctx, l.owner, l.repo, &github.IssueRequest{
		Title:  github.Ptr(t.Title),
		Body:   github.Ptr(issueBody(t)),
		Labels: &[]string{t.Module},
	})
	if err != nil {
		return "", fmt.Errorf("ticket: create issue in %s/%s: %w", l.owner, l.repo, err)
	}
	ref := l.Reference(issue.GetNumber())

	ticketID := ref
	if _, err := plan.UpsertTasks(db, projectID, t.PlanID, []plan.TaskInput{
		{ID: t.ID, TicketID: &ticketID, Version: t.Version},
	}); err != nil {
		return "", fmt.Errorf("ticket: record %s on task %s: %w", ref, taskID, err)
	}
	return ref, nil
}

func issueBody(t *models.Task) string {
	var b strings.Builder
	if t.Description != nil && *t.Description != "" {
		b.WriteString(*t.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Module: %s\n", t.Module)
	if t.Owner != nil {
		fmt.Fprintf(&b, "Owner: %s\n", *t.Owner)
	}
	if t.StartAt != nil {
		fmt.Fprintf(&b, "Start: %s\n", t.StartAt.Format(time.DateOnly))
	}
	if t.DueAt != nil {
		fmt.Fprintf(&b, "Due: %s\n", t.DueAt.Format(time.DateOnly))
	}
	fmt.Fprintf(&b, "\nPlanned task `%s`.\n", t.ID)
	return b.String()
}
