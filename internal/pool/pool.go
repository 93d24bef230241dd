// Package pool implements a bounded-parallelism Task Solver Pool: a
// priority queue of Tasks drained by up to maxParallelDockerContainers
// concurrent workers, each driving one Task Solver.
package pool

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

// Solver is the subset of solver.Solver the pool depends on, so tests can
// inject a fake.
type Solver interface {
	Solve(ctx context.Context, task domain.Task) domain.TaskResult
}

// Counts is a snapshot of the pool's progress, used to publish
// SolverProgress.
type Counts struct {
	Total     int
	Completed int
	Failed    int
	InFlight  int
}

// item is one queued Task plus its insertion sequence, used to break
// priority ties FIFO.
type item struct {
	task domain.Task
	seq  int
}

// priorityQueue orders by (priority desc, seq asc).
type priorityQueue []*item

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority > q[j].task.Priority
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)   { *q = append(*q, x.(*item)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// Pool is a bounded-parallel, cooperatively-cancellable batch of Task
// Solver runs.
type Pool struct {
	solver Solver
	logger *zap.SugaredLogger

	mu        sync.Mutex
	queue     priorityQueue
	nextSeq   int
	results   []domain.TaskResult
	total     int
	completed int
	failed    int
	inFlight  int

	started bool
	stopped bool

	maxParallel int
	sem         chan struct{}

	wg   sync.WaitGroup
	done chan struct{}
}

// New builds a Pool bound to one Solver and a parallelism bound.
func New(solver Solver, maxParallel int, logger *zap.SugaredLogger) *Pool {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Pool{
		solver:      solver,
		logger:      logger,
		maxParallel: maxParallel,
		sem:         make(chan struct{}, maxParallel),
		done:        make(chan struct{}),
	}
}

// AddTask enqueues a task. Ordering of addTask calls does not determine
// dispatch order; priority does.
func (p *Pool) AddTask(task domain.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.queue, &item{task: task, seq: p.nextSeq})
	p.nextSeq++
	p.total++
}

// Start begins dispatching queued tasks and returns once every queued
// task has produced a TaskResult or the pool was stopped. It is
// idempotent: a second call while running is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if p.stopped || p.queue.Len() == 0 {
			p.mu.Unlock()
			break
		}
		it := heap.Pop(&p.queue).(*item)
		p.inFlight++
		p.mu.Unlock()

		p.sem <- struct{}{}
		p.wg.Add(1)
		go func(task domain.Task) {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			result := p.solver.Solve(ctx, task)
			p.recordResult(result)
		}(it.task)
	}

	p.wg.Wait()
	close(p.done)
}

// recordResult appends a terminal TaskResult and updates counters. Holds
// the lock only long enough to mutate shared state.
func (p *Pool) recordResult(result domain.TaskResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
	p.inFlight--
	if result.Status == domain.TaskFailed {
		p.failed++
	} else {
		p.completed++
	}
}

// GetReports returns a snapshot of completed results, safe to call at
// any time.
func (p *Pool) GetReports() []domain.TaskResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TaskResult, len(p.results))
	copy(out, p.results)
	return out
}

// Stop prevents new tasks from being dispatched; in-flight tasks
// continue until their container completes or times out. Remaining
// queued tasks are drained and reported as cancelled failures.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	var drained []domain.Task
	for p.queue.Len() > 0 {
		it := heap.Pop(&p.queue).(*item)
		drained = append(drained, it.task)
	}
	p.mu.Unlock()

	for _, task := range drained {
		now := domain.NowMillis(time.Now())
		p.recordResult(domain.TaskResult{
			Task:        task,
			Status:      domain.TaskFailed,
			Report:      "cancelled",
			CompletedAt: &now,
		})
	}
}

// Counts returns a snapshot for progress publication.
func (p *Pool) Counts() Counts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Counts{
		Total:     p.total,
		Completed: p.completed,
		Failed:    p.failed,
		InFlight:  p.inFlight,
	}
}

// Done returns a channel closed once Start has returned, so a caller can
// select on it alongside a progress ticker rather than polling in a
// fixed-iteration loop.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}
