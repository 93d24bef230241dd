// Package analysis defines the codebase-analysis stage boundary: an
// external collaborator that, given a repo URL and Config, returns a
// list of Task descriptors. This package holds only the interface and
// a minimal stub implementation; a real analyzer is out of scope here.
package analysis

import (
	"context"

	"github.com/fullselfcoding/fsc-server/internal/config"
	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// Analyzer produces the Task list a job will execute, given the
// workspace it should inspect.
type Analyzer interface {
	Analyze(ctx context.Context, workspacePath string, cfg config.Config) ([]domain.Task, error)
}

// StubAnalyzer returns a copy of its fixed Tasks list on every call,
// standing in for a real codebase-analysis implementation. Useful for exercising the
// orchestrator end to end without a language-aware analyzer.
type StubAnalyzer struct {
	Tasks []domain.Task
}

// NewStub returns a StubAnalyzer with one default Task when tasks is
// empty.
func NewStub(tasks []domain.Task) *StubAnalyzer {
	if len(tasks) == 0 {
		tasks = []domain.Task{{
			ID:          "stub-1",
			Title:       "Review repository",
			Description: "Produce a high-level review of the checked-out repository.",
			Priority:    1,
		}}
	}
	return &StubAnalyzer{Tasks: tasks}
}

func (a *StubAnalyzer) Analyze(ctx context.Context, workspacePath string, cfg config.Config) ([]domain.Task, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	out := make([]domain.Task, len(a.Tasks))
	copy(out, a.Tasks)
	return out, nil
}

var _ Analyzer = (*StubAnalyzer)(nil)
