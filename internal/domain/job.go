package domain

import "time"

// JobStatus is the top-level state machine for a Job. A job never returns
// to a prior status and is terminal once Completed or Failed.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobAnalyzing JobStatus = "analyzing"
	JobAnalyzed  JobStatus = "analyzed"
	JobExecuting JobStatus = "executing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// InputKind distinguishes where the Job Orchestrator should pull the
// target repository from.
type InputKind string

const (
	InputGitHubURL InputKind = "github_url"
	InputGitURL    InputKind = "git_url"
	InputLocalPath InputKind = "local_path"
)

// JobInput is the immutable request that created a Job.
type JobInput struct {
	Kind   InputKind       `json:"kind"`
	URL    string          `json:"url"`
	Config *ConfigOverride `json:"config,omitempty"`
}

// ConfigOverride carries the subset of Config fields a single job may
// override relative to the server-wide Config.
type ConfigOverride struct {
	AgentType                   *string `json:"agentType,omitempty"`
	MaxDockerContainers         *int    `json:"maxDockerContainers,omitempty"`
	MaxParallelDockerContainers *int    `json:"maxParallelDockerContainers,omitempty"`
	DockerTimeoutSeconds        *int    `json:"dockerTimeoutSeconds,omitempty"`
	WorkStyle                   *string `json:"workStyle,omitempty"`
}

// StageStatus is the per-stage (analyzer/solver) status vocabulary.
type StageStatus string

const (
	StageIdle    StageStatus = "idle"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
	StageFailed  StageStatus = "failed"
)

// AnalyzerProgress tracks the codebase-analysis stage.
type AnalyzerProgress struct {
	Status      StageStatus `json:"status"`
	Percent     int         `json:"percent"`
	CurrentStep *string     `json:"currentStep,omitempty"`
	TotalSteps  *int        `json:"totalSteps,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	FinishedAt  *time.Time  `json:"finishedAt,omitempty"`
	Error       *string     `json:"error,omitempty"`
}

// SolverProgress tracks the Task Solver Pool stage.
type SolverProgress struct {
	Status         StageStatus `json:"status"`
	Percent        int         `json:"percent"`
	TotalTasks     int         `json:"totalTasks"`
	CompletedTasks int         `json:"completedTasks"`
	FailedTasks    int         `json:"failedTasks"`
	CurrentTask    *string     `json:"currentTask,omitempty"`
	StartedAt      *time.Time  `json:"startedAt,omitempty"`
	FinishedAt     *time.Time  `json:"finishedAt,omitempty"`
	Error          *string     `json:"error,omitempty"`
}

// FinalReport summarizes a completed job.
type FinalReport struct {
	Summary       string `json:"summary"`
	TotalTasks    int    `json:"totalTasks"`
	CompletedTasks int   `json:"completedTasks"`
	FailedTasks   int    `json:"failedTasks"`
	DurationMS    int64  `json:"durationMs"`
}

// JobState is the exclusive property of the owning Job Orchestrator.
// Nothing else in the process mutates it.
type JobState struct {
	ID               string           `json:"id"`
	Input            JobInput         `json:"input"`
	Status           JobStatus        `json:"status"`
	AnalyzerProgress AnalyzerProgress `json:"analyzerProgress"`
	SolverProgress   SolverProgress   `json:"solverProgress"`
	Tasks            []Task           `json:"tasks,omitempty"`
	Results          []TaskResult     `json:"results,omitempty"`
	FinalReport      *FinalReport     `json:"finalReport,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// JobSummary is the projection returned by Task Persistence's history
// listing: enough to render a list view without loading the full report.
type JobSummary struct {
	ID          string     `json:"id"`
	Type        InputKind  `json:"type"`
	URL         string     `json:"url"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Summary     *string    `json:"summary,omitempty"`
}

// Touch bumps UpdatedAt; every mutation method on JobState should call it.
func (j *JobState) Touch(now time.Time) {
	j.UpdatedAt = now
}

// Summary projects JobState down to the fields Task Persistence's
// history listing needs.
func (j *JobState) Summary() JobSummary {
	summary := JobSummary{
		ID:        j.ID,
		Type:      j.Input.Kind,
		URL:       j.Input.URL,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
	if j.Status == JobCompleted || j.Status == JobFailed {
		completedAt := j.UpdatedAt
		summary.CompletedAt = &completedAt
	}
	if j.FinalReport != nil {
		summary.Summary = &j.FinalReport.Summary
	}
	return summary
}
