// internal/job/job.go
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	custom_errors "colorscheme-indexer/internal/errors"
	"colorscheme-indexer/internal/model"
)

// Name identifies a job.
type Name string

const (
	Import Name = "import"
	Update Name = "update"
	Clean  Name = "clean"
)

// Parse returns the job called name.
func Parse(name string) (Name, error) {
	switch n := Name(name); n {
	case Import, Update, Clean:
		return n, nil
	}
	return "", &custom_errors.ErrUnknownJob{Job: name}
}

// Runner is one job's work.
type Runner interface {
	Run(ctx context.Context, rc model.RunContext) (model.Results, error)
}

// ReportStore records job runs.
type ReportStore interface {
	GetLastRunAt(ctx context.Context, jobName string) (*time.Time, error)
	CreateReport(ctx context.Context, report *model.RunReport) error
}

// Notifier posts to the build webhook.
type Notifier interface {
	Post(ctx context.Context, url string, body []byte) error
}

// Options tune a single run.
type Options struct {
	Force bool
	Only  []string
}

// Dispatcher runs jobs by name and records a report for each successful run.
type Dispatcher struct {
	runners  map[Name]Runner
	reports  ReportStore
	notifier Notifier
	webhook  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher. An empty webhook disables the build trigger.
func NewDispatcher(reports ReportStore, notifier Notifier, webhook string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		runners:  make(map[Name]Runner),
		reports:  reports,
		notifier: notifier,
		webhook:  webhook,
		logger:   logger,
		now:      time.Now,
	}
}

// Register binds a runner to a job name.
func (d *Dispatcher) Register(name Name, r Runner) {
	d.runners[name] = r
}

// Dispatch runs the named job. A runner error aborts the run without a report.
// Runs restricted by opts.Only are reported as partial and never become the
// job's last run. The webhook is called once after the report is stored; its
// failure is only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, name Name, opts Options) (*model.RunReport, error) {
	runner, ok := d.runners[name]
	if !ok {
		return nil, &custom_errors.ErrUnknownJob{Job: string(name)}
	}
	logger := d.logger.With("job", name)

	lastRunAt, err := d.reports.GetLastRunAt(ctx, string(name))
	if err != nil {
		return nil, err
	}
	if lastRunAt != nil {
		logger.Info("Starting job", "last_run_at", lastRunAt.Format(time.RFC3339))
	} else {
		logger.Info("Starting job for the first time")
	}

	start := d.now()
	results, err := runner.Run(ctx, model.RunContext{
		LastRunAt: lastRunAt,
		Force:     opts.Force,
		Only:      opts.Only,
	})
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	report := &model.RunReport{
		JobName:     string(name),
		ElapsedTime: d.now().Sub(start),
		Results:     results,
		Partial:     len(opts.Only) > 0,
	}
	if err := d.reports.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	logger.Info("Job finished", "elapsed", report.ElapsedTime.String(), "partial", report.Partial, "results", results)

	if d.webhook != "" {
		logger.Info("Starting website build")
		if err := d.notifier.Post(ctx, d.webhook, nil); err != nil {
			logger.Error("Build webhook failed", "error", err)
		}
	}

	return report, nil
}
