package pool

import (
	"context"
	"sync"
	"testing"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// fakeSolver records the order tasks were solved in and returns success
// for every task.
type fakeSolver struct {
	mu    sync.Mutex
	order []string
}

func (f *fakeSolver) Solve(ctx context.Context, task domain.Task) domain.TaskResult {
	f.mu.Lock()
	f.order = append(f.order, task.ID)
	f.mu.Unlock()
	now := int64(1)
	return domain.TaskResult{Task: task, Status: domain.TaskSuccess, CompletedAt: &now}
}

func TestEveryAddedTaskAppearsExactlyOnce(t *testing.T) {
	fake := &fakeSolver{}
	p := New(fake, 2, nil)

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		p.AddTask(domain.Task{ID: id})
	}

	p.Start(context.Background())

	reports := p.GetReports()
	if len(reports) != len(ids) {
		t.Fatalf("got %d reports, want %d", len(reports), len(ids))
	}
	seen := map[string]int{}
	for _, r := range reports {
		seen[r.Task.ID]++
	}
	for _, id := range ids {
		if seen[id] != 1 {
			t.Errorf("task %s appeared %d times, want 1", id, seen[id])
		}
	}
}

func TestSingleWorkerDispatchesHighestPriorityFirst(t *testing.T) {
	fake := &fakeSolver{}
	p := New(fake, 1, nil)

	p.AddTask(domain.Task{ID: "low", Priority: 1})
	p.AddTask(domain.Task{ID: "high", Priority: 10})
	p.AddTask(domain.Task{ID: "mid", Priority: 5})

	p.Start(context.Background())

	want := []string{"high", "mid", "low"}
	if len(fake.order) != len(want) {
		t.Fatalf("order = %v, want %v", fake.order, want)
	}
	for i, id := range want {
		if fake.order[i] != id {
			t.Errorf("order[%d] = %s, want %s (full: %v)", i, fake.order[i], id, fake.order)
		}
	}
}

func TestTiesBrokenByInsertionOrder(t *testing.T) {
	fake := &fakeSolver{}
	p := New(fake, 1, nil)

	p.AddTask(domain.Task{ID: "first", Priority: 1})
	p.AddTask(domain.Task{ID: "second", Priority: 1})
	p.AddTask(domain.Task{ID: "third", Priority: 1})

	p.Start(context.Background())

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if fake.order[i] != id {
			t.Errorf("order[%d] = %s, want %s", i, fake.order[i], id)
		}
	}
}

func TestCountsReflectTerminalOutcome(t *testing.T) {
	fake := &fakeSolver{}
	p := New(fake, 3, nil)
	for i := 0; i < 4; i++ {
		p.AddTask(domain.Task{ID: string(rune('a' + i))})
	}
	p.Start(context.Background())

	counts := p.Counts()
	if counts.Total != 4 {
		t.Errorf("Total = %d, want 4", counts.Total)
	}
	if counts.Completed != 4 {
		t.Errorf("Completed = %d, want 4", counts.Completed)
	}
	if counts.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", counts.InFlight)
	}
}

func TestMaxParallelBelowOneClampsToOne(t *testing.T) {
	fake := &fakeSolver{}
	p := New(fake, 0, nil)
	if cap(p.sem) != 1 {
		t.Errorf("sem capacity = %d, want 1", cap(p.sem))
	}
}

func TestStopDrainsQueueAsCancelled(t *testing.T) {
	fake := &fakeSolver{}
	p := New(fake, 1, nil)
	p.AddTask(domain.Task{ID: "only"})
	p.Stop()
	p.Start(context.Background())

	reports := p.GetReports()
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].Status != domain.TaskFailed {
		t.Errorf("Status = %s, want failed", reports[0].Status)
	}
	if reports[0].Report != "cancelled" {
		t.Errorf("Report = %q, want cancelled", reports[0].Report)
	}
}
