package solver

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fullselfcoding/fsc-server/internal/config"
	"github.com/fullselfcoding/fsc-server/internal/containerrunner"
	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// RunnerFactory builds a fresh Container Runner. Injected so the Task
// Solver Pool can hand out either real Docker runners or fakes in tests
// rather than constructing one internally.
type RunnerFactory func() (containerrunner.Runner, error)

// Solver runs one Task to completion.
type Solver struct {
	cfg        config.Config
	newRunner  RunnerFactory
	repoURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// New builds a Solver bound to one job's Config and repository URL.
func New(cfg config.Config, repoURL string, newRunner RunnerFactory, logger *zap.SugaredLogger) *Solver {
	return &Solver{
		cfg:        cfg,
		newRunner:  newRunner,
		repoURL:    repoURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Solve executes task end to end: acquire a runner, compose commands, run
// them, parse the report, fetch the diff on success, always shut the
// runner down. It never returns an error for task-level failures — those
// are captured in the returned TaskResult's Status/Report instead.
func (s *Solver) Solve(ctx context.Context, task domain.Task) domain.TaskResult {
	runner, err := s.newRunner()
	if err != nil {
		return s.failureResult(task, &domain.InfraError{Op: "newRunner", Err: err})
	}
	defer runner.Shutdown(context.Background())

	if err := runner.Start(ctx, s.cfg.ContainerImage); err != nil {
		return s.failureResult(task, err)
	}

	workStyleText, err := s.cfg.Text(s.httpClient)
	if err != nil {
		return s.failureResult(task, err)
	}

	commands, err := BuildCommands(s.cfg, task, s.repoURL, workStyleText)
	if err != nil {
		return s.failureResult(task, err)
	}

	result, err := runner.Run(ctx, commands, s.cfg.DockerTimeoutSeconds)
	if err != nil {
		return s.failureResult(task, err)
	}
	if result.Status != containerrunner.RunSuccess {
		return s.failureResult(task, &domain.TaskFailure{TaskID: task.ID, Err: result.FirstError})
	}

	raw, err := runner.CopyOut(ctx, "/app/finalReport.json")
	if err != nil {
		return s.failureResult(task, &domain.TaskFailure{TaskID: task.ID, Err: err})
	}

	rep, err := parseFinalReport(raw)
	if err != nil {
		return s.failureResult(task, &domain.TaskFailure{TaskID: task.ID, Err: err})
	}

	status, err := taskStatus(rep.Status)
	if err != nil {
		return s.failureResult(task, &domain.TaskFailure{TaskID: task.ID, Err: err})
	}

	tr := domain.TaskResult{
		Task:   task,
		Status: status,
		Report: rep.Report,
	}
	now := domain.NowMillis(time.Now())
	tr.CompletedAt = &now

	if status == domain.TaskSuccess {
		diff, err := runner.CopyOut(ctx, "/app/git_diff.txt")
		if err != nil {
			if s.logger != nil {
				s.logger.Warnw("failed to copy git diff", "task", task.ID, "error", err)
			}
		} else {
			tr.GitDiff = string(diff)
		}
	}

	return tr
}

func (s *Solver) failureResult(task domain.Task, err error) domain.TaskResult {
	if s.logger != nil {
		s.logger.Warnw("task failed", "task", task.ID, "error", err)
	}
	now := domain.NowMillis(time.Now())
	report := "error"
	if err != nil {
		report = err.Error()
	}
	return domain.TaskResult{
		Task:        task,
		Status:      domain.TaskFailed,
		Report:      report,
		CompletedAt: &now,
	}
}
