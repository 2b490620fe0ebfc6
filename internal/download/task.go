package download

import (
	"time"

	"estadistica/pkg/contracts/events"
)

// Task is the per-date download state machine:
//
//	Pending → InProgress → Succeeded
//	Pending → InProgress → Retrying → InProgress → … → Failed
//	Pending → Cancelled
//
// A task is created once per date when the orchestrator starts, is owned and
// mutated exclusively by the orchestrator goroutine, and is terminal once
// Succeeded, Failed or Cancelled.
type Task struct {
	Date     time.Time
	Status   events.TaskStatus
	Attempts int
	LastErr  error
	FilePath string
}

func newTask(date time.Time) *Task {
	return &Task{Date: date, Status: events.TaskStatusPending}
}

// start begins one fetch attempt.
func (t *Task) start() {
	t.Status = events.TaskStatusInProgress
	t.Attempts++
}

// retry records a retryable failure with budget remaining.
func (t *Task) retry(err error) {
	t.Status = events.TaskStatusRetrying
	t.LastErr = err
}

// succeed marks the task terminal with its produced file.
func (t *Task) succeed(filePath string) {
	t.Status = events.TaskStatusSucceeded
	t.FilePath = filePath
	t.LastErr = nil
}

// fail marks the task terminal with its final error.
func (t *Task) fail(err error) {
	t.Status = events.TaskStatusFailed
	t.LastErr = err
}

// cancel marks a never-attempted task terminal without a fetch.
func (t *Task) cancel(err error) {
	t.Status = events.TaskStatusCancelled
	t.LastErr = err
}

// terminal reports whether the task reached a final state.
func (t *Task) terminal() bool {
	return t.Status.Terminal()
}

// progress snapshots the task into an outward-facing event.
func (t *Task) progress(runID string) events.TaskProgress {
	p := events.TaskProgress{
		RunID:    runID,
		Date:     t.Date,
		Status:   t.Status,
		Attempts: t.Attempts,
		FilePath: t.FilePath,
	}
	if t.LastErr != nil {
		p.Error = t.LastErr.Error()
	}
	return p
}
