package digest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/planyard/internal/config"
	store "github.com/zulandar/planyard/internal/db"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun returns the first fire time of expr after now.
func NextRun(expr string, now time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("digest: parse schedule %q: %w", expr, err)
	}
	return sched.Next(now), nil
}

// RunnerOpts holds parameters for a digest Runner.
type RunnerOpts struct {
	DB            *gorm.DB
	Notifiers     []Notifier
	DueWithinDays int
	// Timeout bounds the store calls of one project's report.
	Timeout time.Duration
	Log     *log.Logger
	// SkipEmpty suppresses posts for projects with nothing to report.
	SkipEmpty bool
	// Lease bounds how long a claimed slot may stay running. Defaults to
	// DefaultLease.
	Lease time.Duration
	Now   func() time.Time
}

// Runner builds and posts digests.
type Runner struct {
	opts RunnerOpts
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts RunnerOpts) (*Runner, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("digest: db is required")
	}
	if opts.DueWithinDays <= 0 {
		opts.DueWithinDays = 7
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultStatementTimeout
	}
	if opts.Log == nil {
		opts.Log = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{opts: opts}, nil
}

// NotifiersFromConfig builds a notifier for every channel configured.
func NotifiersFromConfig(cfg config.DigestConfig) ([]Notifier, error) {
	var out []Notifier
	if cfg.SlackWebhookURL != "" {
		n, err := NewSlackNotifier(cfg.SlackWebhookURL)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if cfg.DiscordToken != "" {
		n, err := NewDiscordNotifier(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// RunOnce posts a digest for every project with an active plan and returns
// the reports built. A failing project or notifier does not stop the others;
// their errors are joined.
func (r *Runner) RunOnce(ctx context.Context) ([]*Report, error) {
	return r.run(ctx, time.Time{})
}

// RunSlot is RunOnce for a scheduled slot. Each project's post is claimed in
// the store first, so schedulers sharing a store post a slot once. Projects
// already claimed are skipped and produce no report.
func (r *Runner) RunSlot(ctx context.Context, slot time.Time) ([]*Report, error) {
	return r.run(ctx, slot.UTC().Truncate(time.Minute))
}

func (r *Runner) run(ctx context.Context, slot time.Time) ([]*Report, error) {
	db, cancel := store.Scoped(ctx, r.opts.DB, r.opts.Timeout)
	projects, err := ActiveProjects(db)
	cancel()
	if err != nil {
		return nil, err
	}

	var reports []*Report
	var errs []error
	for _, projectID := range projects {
		report, err := r.post(ctx, projectID, slot)
		if errors.Is(err, ErrSlotClaimed) {
			r.opts.Log.Debug("digest slot taken", "project", projectID, "slot", slot.Format(time.RFC3339))
			continue
		}
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// post builds and sends one project's digest. A zero slot skips the claim.
func (r *Runner) post(ctx context.Context, projectID string, slot time.Time) (*Report, error) {
	var claim *models.DigestRun
	if !slot.IsZero() {
		db, cancel := store.Scoped(ctx, r.opts.DB, r.opts.Timeout)
		run, err := claimSlot(db, projectID, slot, r.opts.Now(), r.opts.Lease)
		cancel()
		if err != nil {
			return nil, err
		}
		claim = run
	}

	db, cancel := store.Scoped(ctx, r.opts.DB, r.opts.Timeout)
	report, err := Build(db, projectID, r.opts.DueWithinDays, r.opts.Now())
	cancel()
	if err != nil {
		r.opts.Log.Error("digest build failed", "project", projectID, "err", err)
		err = fmt.Errorf("digest: project %s: %w", projectID, err)
		return nil, errors.Join(err, r.finish(ctx, claim, err))
	}

	var errs []error
	if !r.opts.SkipEmpty || !report.Empty() {
		text := Format(report)
		for _, n := range r.opts.Notifiers {
			if err := n.Notify(ctx, text); err != nil {
				r.opts.Log.Error("digest post failed", "project", projectID, "notifier", n.Name(), "err", err)
				errs = append(errs, fmt.Errorf("digest: %s for %s: %w", n.Name(), projectID, err))
			}
		}
		r.opts.Log.Info("digest built", "project", projectID,
			"overdue", len(report.Overdue), "due_soon", len(report.DueSoon), "snoozed", report.Snoozed)
	}
	err = errors.Join(errs...)
	if ferr := r.finish(ctx, claim, err); ferr != nil {
		errs = append(errs, ferr)
	}
	return report, errors.Join(errs...)
}

// finish records the outcome of a claimed post. A nil claim is a no-op.
func (r *Runner) finish(ctx context.Context, claim *models.DigestRun, postErr error) error {
	if claim == nil {
		return nil
	}
	status := models.DigestSent
	if postErr != nil {
		status = models.DigestFailed
	}
	db, cancel := store.Scoped(ctx, r.opts.DB, r.opts.Timeout)
	defer cancel()
	return finishRun(db, claim.ID, status, r.opts.Now())
}

// Schedule runs RunSlot on the cron expression until ctx is cancelled.
func (r *Runner) Schedule(ctx context.Context, expr string) error {
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC))
	_, err := c.AddFunc(expr, func() {
		if _, err := r.RunSlot(ctx, r.opts.Now()); err != nil {
			r.opts.Log.Warn("digest run finished with errors", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("digest: parse schedule %q: %w", expr, err)
	}

	c.Start()
	if next, err := NextRun(expr, r.opts.Now()); err == nil {
		r.opts.Log.Info("digest scheduled", "schedule", expr, "next", next.Format(time.RFC3339))
	}
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
