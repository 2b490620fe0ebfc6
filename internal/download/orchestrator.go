// Package download sequences the per-date report fetches across a requested
// date range, owning retries, throttling, cancellation and progress.
package download

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"estadistica/internal/config"
	"estadistica/pkg/contracts/domain"
	"estadistica/pkg/contracts/events"
)

// Fetcher is the per-date fetch operation the orchestrator sequences.
type Fetcher interface {
	Fetch(ctx context.Context, date time.Time) (string, error)
}

// SessionChecker verifies an authenticated session before any fetch.
type SessionChecker interface {
	CheckSession(ctx context.Context) error
}

// Orchestrator walks a date range strictly sequentially, one task per date.
// Concurrent report generation against the same portal session is not
// supported by the target system, so there is exactly one in-flight fetch.
type Orchestrator struct {
	gate    SessionChecker
	fetcher Fetcher
	cfg     *config.Config
	logger  *slog.Logger

	// limiter spaces fetches so the portal is not hammered; the configured
	// wait between downloads is expressed as its refill interval
	limiter *rate.Limiter

	runID    string
	progress chan events.TaskProgress
}

// NewOrchestrator creates an orchestrator for one run. Progress events are
// delivered on the channel returned by Progress, which Run closes on return.
func NewOrchestrator(gate SessionChecker, fetcher Fetcher, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	limit := rate.Inf
	if cfg.General.WaitBetween > 0 {
		limit = rate.Every(cfg.General.WaitBetween)
	}
	return &Orchestrator{
		gate:     gate,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
		runID:    uuid.NewString(),
		progress: make(chan events.TaskProgress, 256),
	}
}

// RunID returns this run's identifier.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Progress returns the one-directional event stream for the presentation
// layer. Closed when Run returns.
func (o *Orchestrator) Progress() <-chan events.TaskProgress {
	return o.progress
}

// Run executes the download phase over the date range. Per-date failures
// never abort the run; a fatal session or configuration failure does, and is
// returned alongside the summary. Cancellation is cooperative: the context is
// polled at the top of each date iteration and inside wait loops.
func (o *Orchestrator) Run(ctx context.Context, dr domain.DateRange) (*events.RunSummary, error) {
	defer close(o.progress)

	summary := &events.RunSummary{RunID: o.runID, StartTime: time.Now()}
	defer func() { summary.EndTime = time.Now() }()

	if err := dr.Validate(); err != nil {
		return summary, NewConfigError("invalid date range", err)
	}

	tasks := make([]*Task, 0, dr.Len())
	for _, date := range dr.Dates() {
		tasks = append(tasks, newTask(date))
	}

	o.logger.Info("starting download run",
		slog.String("run_id", o.runID),
		slog.String("from", tasks[0].Date.Format("2006-01-02")),
		slog.String("to", tasks[len(tasks)-1].Date.Format("2006-01-02")),
		slog.Int("days", len(tasks)))

	if err := o.gate.CheckSession(ctx); err != nil {
		fatal := NewSessionError(err)
		o.logger.Error("session check failed, aborting run", slog.String("error", err.Error()))
		o.failAll(ctx, tasks, fatal)
		o.collect(tasks, summary)
		return summary, fatal
	}

	var fatal error
	for i, task := range tasks {
		if ctx.Err() != nil {
			o.cancelFrom(ctx, tasks, i)
			summary.Cancelled = true
			break
		}
		if err := o.limiter.Wait(ctx); err != nil {
			o.cancelFrom(ctx, tasks, i)
			summary.Cancelled = true
			break
		}

		err := o.runTask(ctx, task)
		switch {
		case err == nil:
		case IsFatal(err):
			fatal = err
			o.failFrom(ctx, tasks, i+1, err)
		case ctx.Err() != nil:
			o.cancelFrom(ctx, tasks, i+1)
			summary.Cancelled = true
		}
		if fatal != nil || summary.Cancelled {
			break
		}
	}

	o.collect(tasks, summary)
	o.logger.Info("download run finished",
		slog.Int("succeeded", len(summary.Succeeded)),
		slog.Int("failed", len(summary.Failed)),
		slog.Bool("cancelled", summary.Cancelled))
	return summary, fatal
}

// runTask drives one task to a terminal state, applying the retry budget.
// Returns a non-nil error only for fatal or cancellation causes.
func (o *Orchestrator) runTask(ctx context.Context, task *Task) error {
	for {
		task.start()
		o.logger.Info("fetching report",
			slog.String("date", task.Date.Format("2006-01-02")),
			slog.Int("attempt", task.Attempts))

		path, err := o.fetcher.Fetch(ctx, task.Date)
		if err == nil {
			task.succeed(path)
			o.emit(ctx, task)
			return nil
		}

		if ctx.Err() != nil {
			task.cancel(ctx.Err())
			o.emit(ctx, task)
			return ctx.Err()
		}

		if IsFatal(err) || !IsRetryable(err) {
			task.fail(err)
			o.emit(ctx, task)
			if IsFatal(err) {
				return err
			}
			return nil
		}

		if task.Attempts >= o.cfg.General.RetryAttempts {
			task.fail(err)
			o.emit(ctx, task)
			o.logger.Warn("date exhausted retry budget",
				slog.String("date", task.Date.Format("2006-01-02")),
				slog.Int("attempts", task.Attempts),
				slog.String("error", err.Error()))
			return nil
		}

		task.retry(err)
		o.emit(ctx, task)

		// fixed inter-attempt delay, interruptible
		select {
		case <-time.After(o.cfg.General.WaitBetween):
		case <-ctx.Done():
			task.cancel(ctx.Err())
			o.emit(ctx, task)
			return ctx.Err()
		}
	}
}

// failAll marks every task failed with the given fatal cause.
func (o *Orchestrator) failAll(ctx context.Context, tasks []*Task, cause error) {
	o.failFrom(ctx, tasks, 0, cause)
}

// failFrom marks tasks[i:] failed with the given fatal cause.
func (o *Orchestrator) failFrom(ctx context.Context, tasks []*Task, i int, cause error) {
	for _, task := range tasks[i:] {
		if task.terminal() {
			continue
		}
		task.fail(cause)
		o.emit(ctx, task)
	}
}

// cancelFrom marks the remaining pending tasks cancelled without attempting
// a fetch.
func (o *Orchestrator) cancelFrom(ctx context.Context, tasks []*Task, i int) {
	for _, task := range tasks[i:] {
		if task.terminal() {
			continue
		}
		task.cancel(context.Canceled)
		o.emit(ctx, task)
	}
}

// emit publishes a task snapshot. The buffered send is attempted first so a
// cancelled context never swallows a deliverable event; only a genuinely full
// buffer may drop one on a cancelled run.
func (o *Orchestrator) emit(ctx context.Context, task *Task) {
	p := task.progress(o.runID)
	select {
	case o.progress <- p:
		return
	default:
	}
	select {
	case o.progress <- p:
	case <-ctx.Done():
	}
}

// collect partitions terminal tasks into the run summary.
func (o *Orchestrator) collect(tasks []*Task, summary *events.RunSummary) {
	for _, task := range tasks {
		switch task.Status {
		case events.TaskStatusSucceeded:
			summary.Succeeded = append(summary.Succeeded, events.DateResult{
				Date:     task.Date,
				FilePath: task.FilePath,
			})
		case events.TaskStatusFailed, events.TaskStatusCancelled:
			res := events.DateResult{Date: task.Date}
			if task.LastErr != nil {
				res.Error = task.LastErr.Error()
			}
			summary.Failed = append(summary.Failed, res)
			if task.Status == events.TaskStatusCancelled {
				summary.Cancelled = true
			}
		}
	}
}
