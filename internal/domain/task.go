// Package domain holds the data model shared by every component of the
// job orchestration runtime: tasks, task results, job state and the error
// taxonomy they fail with.
package domain

import "time"

// TaskStatus is the lifecycle of a single Task. It is monotonic:
// NotStarted -> Ongoing -> {Success, Failure, Skipped}.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskOngoing    TaskStatus = "ongoing"
	TaskSuccess    TaskStatus = "success"
	TaskFailed     TaskStatus = "failure"
	TaskSkipped    TaskStatus = "skipped"
)

// Task is a unit of work produced by the analysis stage and consumed by
// exactly one Task Solver. Its fields never mutate after creation.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

// TaskResult is a Task plus its terminal status, free-form report and
// optional unified diff. Created once by a Task Solver, never mutated.
type TaskResult struct {
	Task
	Status      TaskStatus `json:"status"`
	Report      string     `json:"report"`
	CompletedAt *int64     `json:"completedAt,omitempty"`
	GitDiff     string     `json:"gitDiff,omitempty"`
}

// NowMillis returns wall-clock time as epoch milliseconds, the unit the
// spec uses for CompletedAt and for branch-name timestamps.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
