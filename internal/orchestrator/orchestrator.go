// Package orchestrator implements the Job Orchestrator and the GitHub
// job variant: the top-level state machine that drives one job through
// analysis, the Task Solver Pool, and the Code Committer, publishing
// progress to the State Store and persisting terminal state.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fullselfcoding/fsc-server/internal/analysis"
	"github.com/fullselfcoding/fsc-server/internal/committer"
	"github.com/fullselfcoding/fsc-server/internal/config"
	"github.com/fullselfcoding/fsc-server/internal/domain"
	"github.com/fullselfcoding/fsc-server/internal/eventbus"
	"github.com/fullselfcoding/fsc-server/internal/persistence"
	"github.com/fullselfcoding/fsc-server/internal/pool"
	"github.com/fullselfcoding/fsc-server/internal/solver"
	"github.com/fullselfcoding/fsc-server/internal/state"
)

const progressPollInterval = 2 * time.Second

// Orchestrator drives jobs through their lifecycle. One Orchestrator
// instance is process-wide; it tracks which job IDs are currently
// executing to refuse re-entrant execution.
type Orchestrator struct {
	cfg           config.Config
	analyzer      analysis.Analyzer
	persistence   *persistence.Store
	store         *state.Store
	events        *eventbus.Publisher
	newRunner     solver.RunnerFactory
	committerOpts committer.Options
	logger        *zap.SugaredLogger

	mu        sync.Mutex
	executing map[string]bool
	cancelFns sync.Map // jobID -> context.CancelFunc
}

// New builds an Orchestrator. newRunner is invoked once per Task Solver
// to obtain a fresh Container Runner, the same RunnerFactory DI seam
// internal/solver establishes.
func New(
	cfg config.Config,
	analyzer analysis.Analyzer,
	persist *persistence.Store,
	store *state.Store,
	events *eventbus.Publisher,
	newRunner solver.RunnerFactory,
	committerOpts committer.Options,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		analyzer:      analyzer,
		persistence:   persist,
		store:         store,
		events:        events,
		newRunner:     newRunner,
		committerOpts: committerOpts,
		logger:        logger,
		executing:     make(map[string]bool),
	}
}

// SubmitJob creates a JobState for input and starts executing it in the
// background. Returns the new job ID immediately.
func (o *Orchestrator) SubmitJob(input domain.JobInput) (string, error) {
	id := uuid.New().String()
	if _, err := o.persistence.CreateJob(id, input); err != nil {
		return "", err
	}
	go func() {
		if err := o.ExecuteJob(id); err != nil && o.logger != nil {
			o.logger.Errorw("job execution failed", "job", id, "error", err)
		}
	}()
	return id, nil
}

// SubmitGitHubJob implements webhook.JobSubmitter: it submits a
// GitHubURL job for repoURL, supporting the push-triggered flow a GitHub
// webhook kicks off. branch is not recorded on the job; the workspace
// clone takes the remote's default branch.
func (o *Orchestrator) SubmitGitHubJob(repoURL, branch string) (string, error) {
	return o.SubmitJob(domain.JobInput{Kind: domain.InputGitHubURL, URL: repoURL})
}

// StopJob requests cooperative cancellation of a running job.
func (o *Orchestrator) StopJob(id string) error {
	v, ok := o.cancelFns.Load(id)
	if !ok {
		return fmt.Errorf("job %s is not executing", id)
	}
	v.(context.CancelFunc)()
	return nil
}

// ExecuteJob runs id's full lifecycle. Refuses re-entry if id is already
// executing in this process.
func (o *Orchestrator) ExecuteJob(id string) error {
	o.mu.Lock()
	if o.executing[id] {
		o.mu.Unlock()
		return fmt.Errorf("job %s is already executing", id)
	}
	o.executing[id] = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.executing, id)
		o.mu.Unlock()
	}()

	job, ok, err := o.persistence.LoadJob(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancelFns.Store(id, cancel)
	defer func() {
		o.cancelFns.Delete(id)
		cancel()
	}()

	o.runPipeline(ctx, &job)
	return nil
}

// runPipeline drives job through Pending -> Analyzing -> Analyzed ->
// Executing -> {Completed, Failed}.
func (o *Orchestrator) runPipeline(ctx context.Context, job *domain.JobState) {
	started := time.Now()

	job.Status = domain.JobAnalyzing
	job.AnalyzerProgress.Status = domain.StageRunning
	now := time.Now()
	job.AnalyzerProgress.StartedAt = &now
	o.persistAndPublish(job)

	workspace, cleanup, err := prepareWorkspace(job.Input, job.ID)
	if err != nil {
		o.fail(job, "analyzer", err)
		return
	}
	defer cleanup()

	jobCfg := o.cfg.WithOverride(job.Input.Config)

	tasks, err := o.analyzer.Analyze(ctx, workspace, jobCfg)
	if err != nil {
		o.fail(job, "analyzer", &domain.AnalysisError{Err: err})
		return
	}

	finishedAnalysis := time.Now()
	job.AnalyzerProgress.Status = domain.StageDone
	job.AnalyzerProgress.Percent = 100
	job.AnalyzerProgress.FinishedAt = &finishedAnalysis
	job.Status = domain.JobAnalyzed
	job.Tasks = tasks
	job.SolverProgress.TotalTasks = len(tasks)
	o.persistAndPublish(job)

	job.Status = domain.JobExecuting
	solverStarted := time.Now()
	job.SolverProgress.Status = domain.StageRunning
	job.SolverProgress.StartedAt = &solverStarted
	o.persistAndPublish(job)

	repoURL := job.Input.URL
	taskSolver := solver.New(jobCfg, repoURL, o.newRunner, o.logger)
	taskPool := pool.New(taskSolver, jobCfg.MaxParallelDockerContainers, o.logger)
	for _, task := range tasks {
		taskPool.AddTask(task)
	}

	go func() {
		<-ctx.Done()
		taskPool.Stop()
	}()

	poolDone := make(chan struct{})
	go func() {
		taskPool.Start(ctx)
		close(poolDone)
	}()

	o.monitorProgress(job, taskPool, poolDone)

	results := taskPool.GetReports()
	job.Results = results
	counts := taskPool.Counts()
	solverFinished := time.Now()
	job.SolverProgress.Percent = 90
	job.SolverProgress.CompletedTasks = counts.Completed
	job.SolverProgress.FailedTasks = counts.Failed
	job.SolverProgress.FinishedAt = &solverFinished
	job.SolverProgress.Status = domain.StageDone
	o.persistAndPublish(job)

	if err := o.persistence.SaveResults(job.ID, results); err != nil && o.logger != nil {
		o.logger.Warnw("failed to save results", "job", job.ID, "error", err)
	}

	if ctx.Err() != nil {
		o.fail(job, "solver", &domain.CancelledError{})
		return
	}

	summary, cerr := o.runCommitter(workspace, results)
	if cerr != nil && o.logger != nil {
		o.logger.Warnw("code committer failed", "job", job.ID, "error", cerr)
	}

	job.SolverProgress.Percent = 100
	job.Status = domain.JobCompleted
	job.FinalReport = &domain.FinalReport{
		Summary:        renderFinalSummary(summary, counts),
		TotalTasks:     len(tasks),
		CompletedTasks: counts.Completed,
		FailedTasks:    counts.Failed,
		DurationMS:     time.Since(started).Milliseconds(),
	}
	o.persistAndPublish(job)
}

// monitorProgress polls pool.Counts() on a fixed tick and republishes
// solverProgress until the pool signals completion on done.
func (o *Orchestrator) monitorProgress(job *domain.JobState, p *pool.Pool, done <-chan struct{}) {
	ticker := time.NewTicker(progressPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			counts := p.Counts()
			job.SolverProgress.CompletedTasks = counts.Completed
			job.SolverProgress.FailedTasks = counts.Failed
			if counts.Total > 0 {
				job.SolverProgress.Percent = int(math.Floor(80 * float64(counts.Completed+counts.Failed) / float64(counts.Total)))
			}
			o.persistAndPublish(job)
		}
	}
}

// runCommitter integrates the batch of results into workspace's git
// tree.
func (o *Orchestrator) runCommitter(workspace string, results []domain.TaskResult) (committer.Summary, error) {
	c, err := committer.New(workspace, o.committerOpts, o.logger)
	if err != nil {
		return committer.Summary{}, err
	}
	return c.CommitAll(results)
}

// fail transitions job to Failed and records the error.
func (o *Orchestrator) fail(job *domain.JobState, stage string, err error) {
	job.Status = domain.JobFailed
	msg := err.Error()
	switch stage {
	case "analyzer":
		job.AnalyzerProgress.Status = domain.StageFailed
		job.AnalyzerProgress.Error = &msg
	case "solver":
		job.SolverProgress.Status = domain.StageFailed
		job.SolverProgress.Error = &msg
	}
	o.persistAndPublish(job)
}

// persistAndPublish writes job to Task Persistence and mirrors its
// progress sub-objects onto the State Store, plus an optional
// event-bus mirror.
func (o *Orchestrator) persistAndPublish(job *domain.JobState) {
	job.Touch(time.Now())
	if err := o.persistence.SaveJob(*job); err != nil && o.logger != nil {
		o.logger.Warnw("failed to persist job", "job", job.ID, "error", err)
	}

	if o.store != nil {
		if v, err := state.ObjectValue(job); err == nil {
			o.store.Set("task:"+job.ID, v, state.SetOptions{})
		}
		if v, err := state.ObjectValue(job.Status); err == nil {
			o.store.Set("task:"+job.ID+":status", v, state.SetOptions{})
		}
		if v, err := state.ObjectValue(job.AnalyzerProgress); err == nil {
			o.store.Set("task:"+job.ID+":analyzer", v, state.SetOptions{})
		}
		if v, err := state.ObjectValue(job.SolverProgress); err == nil {
			o.store.Set("task:"+job.ID+":solver", v, state.SetOptions{})
		}
	}

	if o.events != nil {
		if err := o.events.Publish(eventbus.JobEvent{JobID: job.ID, Status: job.Status, Timestamp: time.Now()}); err != nil && o.logger != nil {
			o.logger.Warnw("failed to publish job event", "job", job.ID, "error", err)
		}
	}
}

func renderFinalSummary(summary committer.Summary, counts pool.Counts) string {
	return fmt.Sprintf("%d/%d tasks succeeded, %d committed branches", counts.Completed, counts.Total, summary.SuccessfulTasks)
}
