package containerrunner

import "context"

// FakeRunner is an in-memory Runner used by Task Solver and Job
// Orchestrator tests so they don't need a live Docker daemon.
type FakeRunner struct {
	StartErr    error
	RunResult   RunResult
	RunErr      error
	Files       map[string][]byte
	ShutdownErr error

	Started  bool
	Shutdown bool
	Commands []string
}

// NewFakeRunner is a constructor so test call sites read the way the
// teacher's NewTestRunnerPool/NewContainerRunnerPool builders do.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		RunResult: RunResult{Status: RunSuccess},
		Files:     map[string][]byte{},
	}
}

func (f *FakeRunner) Start(ctx context.Context, image string) error {
	f.Started = true
	return f.StartErr
}

func (f *FakeRunner) Run(ctx context.Context, commands []string, timeoutSeconds int) (RunResult, error) {
	f.Commands = append(f.Commands, commands...)
	return f.RunResult, f.RunErr
}

func (f *FakeRunner) CopyOut(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.Files[path]
	if !ok {
		return nil, &notFoundErr{path}
	}
	return data, nil
}

func (f *FakeRunner) Shutdown(ctx context.Context) error {
	f.Shutdown = true
	return f.ShutdownErr
}

type notFoundErr struct{ path string }

func (e *notFoundErr) Error() string { return e.path + ": not found" }

var _ Runner = (*FakeRunner)(nil)
