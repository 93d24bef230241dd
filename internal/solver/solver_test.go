package solver

import (
	"context"
	"testing"

	"github.com/fullselfcoding/fsc-server/internal/config"
	"github.com/fullselfcoding/fsc-server/internal/containerrunner"
	"github.com/fullselfcoding/fsc-server/internal/domain"
)

func TestSolveHappyPath(t *testing.T) {
	fake := containerrunner.NewFakeRunner()
	fake.Files["/app/finalReport.json"] = []byte(`{"taskId":"t1","title":"x","description":"y","status":"success","report":"did the thing"}`)
	fake.Files["/app/git_diff.txt"] = []byte("diff --git a/x b/x\n")

	cfg := config.Default()
	s := New(cfg, "https://github.com/acme/widgets", func() (containerrunner.Runner, error) { return fake, nil }, nil)

	result := s.Solve(context.Background(), domain.Task{ID: "t1", Title: "x", Description: "y", Priority: 1})

	if result.Status != domain.TaskSuccess {
		t.Fatalf("Status = %s, want success (report: %s)", result.Status, result.Report)
	}
	if result.GitDiff == "" {
		t.Error("expected non-empty GitDiff")
	}
	if result.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if !fake.Shutdown {
		t.Error("expected runner to be shut down")
	}
}

func TestSolveParseFailureProducesFailureResult(t *testing.T) {
	fake := containerrunner.NewFakeRunner()
	fake.Files["/app/finalReport.json"] = []byte("not json at all")

	cfg := config.Default()
	s := New(cfg, "https://github.com/acme/widgets", func() (containerrunner.Runner, error) { return fake, nil }, nil)

	result := s.Solve(context.Background(), domain.Task{ID: "t2", Title: "x", Description: "y"})

	if result.Status != domain.TaskFailed {
		t.Fatalf("Status = %s, want failure", result.Status)
	}
	if result.GitDiff != "" {
		t.Error("expected no GitDiff on parse failure")
	}
	if !fake.Shutdown {
		t.Error("expected runner to be shut down even on failure")
	}
}

func TestSolveRunFailureSkipsParsing(t *testing.T) {
	fake := containerrunner.NewFakeRunner()
	fake.RunResult = containerrunner.RunResult{Status: containerrunner.RunFailure}

	cfg := config.Default()
	s := New(cfg, "https://github.com/acme/widgets", func() (containerrunner.Runner, error) { return fake, nil }, nil)

	result := s.Solve(context.Background(), domain.Task{ID: "t3"})

	if result.Status != domain.TaskFailed {
		t.Fatalf("Status = %s, want failure", result.Status)
	}
}

func TestSolveTimeoutProducesFailureResult(t *testing.T) {
	fake := containerrunner.NewFakeRunner()
	fake.RunResult = containerrunner.RunResult{Status: containerrunner.RunTimeout, CombinedOutput: "[timeout exceeded]"}

	cfg := config.Default()
	s := New(cfg, "https://github.com/acme/widgets", func() (containerrunner.Runner, error) { return fake, nil }, nil)

	result := s.Solve(context.Background(), domain.Task{ID: "t4"})

	if result.Status != domain.TaskFailed {
		t.Fatalf("Status = %s, want failure", result.Status)
	}
}

func TestSolveSkippedStatusHasNoDiff(t *testing.T) {
	fake := containerrunner.NewFakeRunner()
	fake.Files["/app/finalReport.json"] = []byte(`{"taskId":"t5","status":"skipped","report":"nothing to do"}`)
	fake.Files["/app/git_diff.txt"] = []byte("")

	cfg := config.Default()
	s := New(cfg, "https://github.com/acme/widgets", func() (containerrunner.Runner, error) { return fake, nil }, nil)

	result := s.Solve(context.Background(), domain.Task{ID: "t5"})

	if result.Status != domain.TaskSkipped {
		t.Fatalf("Status = %s, want skipped", result.Status)
	}
	if result.GitDiff != "" {
		t.Error("expected no GitDiff for skipped status")
	}
}

func TestParseFinalReportTolerantOfSurroundingProse(t *testing.T) {
	raw := []byte("Here is my report:\n{\"taskId\":\"t1\",\"status\":\"success\",\"report\":\"ok\"}\nThanks!")
	rep, err := parseFinalReport(raw)
	if err != nil {
		t.Fatalf("parseFinalReport: %v", err)
	}
	if rep.TaskID != "t1" || rep.Status != "success" {
		t.Errorf("unexpected report: %+v", rep)
	}
}
