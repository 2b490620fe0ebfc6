// Package events contains the progress event contracts emitted by the
// download orchestrator for consumption by a presentation layer.
package events

import (
	"time"
)

// TaskStatus is the lifecycle status of one per-date download task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusRetrying   TaskStatus = "retrying"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is final for a task.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskProgress is emitted once per task after it reaches a terminal state,
// plus intermediate updates on each retry transition.
type TaskProgress struct {
	RunID    string     `json:"run_id"`
	Date     time.Time  `json:"date"`
	Status   TaskStatus `json:"status"`
	Attempts int        `json:"attempts"`
	FilePath string     `json:"file_path,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// DateResult pairs a date with the downloaded file or the final error.
type DateResult struct {
	Date     time.Time `json:"date"`
	FilePath string    `json:"file_path,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// RunSummary is the final, run-level result: the partition of the requested
// range into succeeded and failed dates. Failed entries carry their cause so
// a user can re-run only those dates.
type RunSummary struct {
	RunID     string       `json:"run_id"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	Succeeded []DateResult `json:"succeeded"`
	Failed    []DateResult `json:"failed"`
	Cancelled bool         `json:"cancelled"`
}
