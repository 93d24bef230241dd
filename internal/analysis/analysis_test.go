package analysis

import (
	"context"
	"testing"

	"github.com/fullselfcoding/fsc-server/internal/config"
)

func TestStubAnalyzerReturnsDefaultTaskWhenEmpty(t *testing.T) {
	a := NewStub(nil)
	tasks, err := a.Analyze(context.Background(), "/tmp/repo", config.Default())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
}

func TestStubAnalyzerReturnsCopyNotSharedSlice(t *testing.T) {
	a := NewStub(nil)
	first, _ := a.Analyze(context.Background(), "/tmp/repo", config.Default())
	first[0].Title = "mutated"
	second, _ := a.Analyze(context.Background(), "/tmp/repo", config.Default())
	if second[0].Title == "mutated" {
		t.Error("expected Analyze to return an independent copy each call")
	}
}

func TestStubAnalyzerRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewStub(nil)
	_, err := a.Analyze(ctx, "/tmp/repo", config.Default())
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}
