package executor

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/perf-analysis/pkg/depsys"
	"github.com/perf-analysis/pkg/utils"
)

// Body is a task's executable body. It runs once the dependency system
// reports the task as runnable and returns before Finalize is invoked on
// its behalf.
type Body func(ctx context.Context) error

type workerIDKeyType struct{}

var workerIDKey workerIDKeyType

// WorkerIDFromContext returns the small, reused [0, workerCount) slot
// index the calling body is currently occupying, the Go-goroutine
// analogue of a nosv worker thread id — used by pkg/taskapi to key
// per-worker reduction slots (depsys.ReductionInfo.GetFreeSlot) the same
// way the source keys them by CPU id.
func WorkerIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey).(int)
	return id, ok
}

// Pool is a fixed-capacity worker pool grounded on
// internal/scheduler.Scheduler's workerPool-semaphore/taskQueue pattern,
// repurposed from polling external job sources to draining the ready
// lists a depsys.DependencySystem produces.
type Pool struct {
	ds     *depsys.DependencySystem
	logger utils.Logger

	sem   *semaphore.Weighted
	queue chan *depsys.TaskNode

	bodies sync.Map // *depsys.TaskNode -> Body

	eg    *errgroup.Group
	egCtx context.Context

	wg sync.WaitGroup

	workerIDs chan int

	mu        sync.Mutex
	resumeGate chan struct{}

	closeOnce sync.Once
	stopCh    chan struct{}
}

// New creates a Pool with workerCount concurrent slots (0 means
// runtime.NumCPU()) and a queue buffered to queueSize pending
// submissions.
func New(ds *depsys.DependencySystem, workerCount, queueSize int, logger utils.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	eg, egCtx := errgroup.WithContext(context.Background())

	gate := make(chan struct{})
	close(gate) // start unpaused

	workerIDs := make(chan int, workerCount)
	for i := 0; i < workerCount; i++ {
		workerIDs <- i
	}

	p := &Pool{
		ds:         ds,
		logger:     logger,
		sem:        semaphore.NewWeighted(int64(workerCount)),
		queue:      make(chan *depsys.TaskNode, queueSize),
		eg:         eg,
		egCtx:      egCtx,
		resumeGate: gate,
		workerIDs:  workerIDs,
		stopCh:     make(chan struct{}),
	}
	go p.dispatchLoop()
	return p
}

// Attach associates body with task, to be run the first time task is
// submitted as runnable. It must be called before the task can ever
// become ready (i.e. before the Register call that might immediately
// return it).
func (p *Pool) Attach(task *depsys.TaskNode, body Body) {
	p.bodies.Store(task, body)
}

// Detach removes task's body without running it, used when a task was
// attached speculatively but never actually submitted.
func (p *Pool) Detach(task *depsys.TaskNode) {
	p.bodies.Delete(task)
}

// Submit enqueues task for execution. The dependency system is the only
// legitimate source of "this task is runnable now" decisions; callers
// pass along whatever Register/Finalize/Release/Taskwait returned.
func (p *Pool) Submit(task *depsys.TaskNode) {
	if task == nil {
		return
	}
	p.wg.Add(1)
	select {
	case p.queue <- task:
	case <-p.stopCh:
		p.wg.Done()
	}
}

// SubmitAll is a convenience wrapper over Submit for a ready-task slice.
func (p *Pool) SubmitAll(tasks []*depsys.TaskNode) {
	for _, t := range tasks {
		p.Submit(t)
	}
}

// Pause stops the pool from dispatching newly queued tasks to workers.
// Tasks already running continue to completion; tasks already queued
// stay queued until Resume (§1's "submit/pause/attach/detach").
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.resumeGate:
		p.resumeGate = make(chan struct{})
	default:
		// already paused
	}
}

// Resume lets a paused pool dispatch queued tasks again.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.resumeGate:
		// already running
	default:
		close(p.resumeGate)
	}
}

// Wait blocks until every submitted task, and every task transitively
// made runnable by finalizing them, has completed, then returns the
// first body error encountered, if any.
func (p *Pool) Wait() error {
	p.wg.Wait()
	return p.eg.Wait()
}

// Close stops the dispatch loop. Pending queued tasks that have not yet
// been picked up are dropped; call Wait first in normal shutdown.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.stopCh) })
}

func (p *Pool) dispatchLoop() {
	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.queue:
			p.mu.Lock()
			gate := p.resumeGate
			p.mu.Unlock()

			select {
			case <-gate:
			case <-p.stopCh:
				p.wg.Done()
				return
			}

			t := task
			p.eg.Go(func() error { return p.run(t) })
		}
	}
}

// Spawn runs fn as a detached unit of work outside the dependency graph
// (§6 "spawn_function"): it competes for the same worker slots as
// ordinary task bodies and is waited on by Wait, but it is never
// registered with the dependency system and so never gates a taskwait or
// a predecessor edge. label is used only for error logging.
func (p *Pool) Spawn(label string, fn func() error) {
	p.wg.Add(1)
	p.eg.Go(func() error {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.egCtx, 1); err != nil {
			return err
		}
		defer p.sem.Release(1)

		if err := fn(); err != nil {
			p.logger.Error("spawned function %q failed: %v", label, err)
			return err
		}
		return nil
	})
}

// run executes t's body (if any was attached), finalizes the task with
// the dependency system, and resubmits every task that became runnable
// as a consequence — the loop that keeps the graph draining without any
// caller re-entering the pool.
func (p *Pool) run(t *depsys.TaskNode) error {
	defer p.wg.Done()

	if err := p.sem.Acquire(p.egCtx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	id := <-p.workerIDs
	defer func() { p.workerIDs <- id }()
	ctx := context.WithValue(p.egCtx, workerIDKey, id)

	if v, ok := p.bodies.Load(t); ok {
		body := v.(Body)
		p.bodies.Delete(t)
		if err := body(ctx); err != nil {
			p.logger.Error("task %d body failed: %v", t.ID, err)
			return err
		}
	}

	ready := p.ds.CompleteBody(t)
	p.SubmitAll(ready)
	return nil
}
