package taskapi

import (
	"context"
	"time"

	"github.com/perf-analysis/pkg/depsys"
	"github.com/perf-analysis/pkg/executor"
	"github.com/perf-analysis/pkg/instrument"
)

// TaskKindFlags re-exports depsys.TaskFlags so callers don't need to
// import pkg/depsys directly for the common if0/wait/final/taskloop
// flags (§2, §6 create_task).
type TaskKindFlags = depsys.TaskFlags

const (
	If0      = depsys.If0
	Wait     = depsys.Wait
	WeakTask = depsys.WeakTask
	Final    = depsys.Final
	Spawned  = depsys.Spawned
	Taskloop = depsys.Taskloop
)

// TaskContext is the per-execution handle a task body receives. It lets
// the body release accesses early, increment/decrement its own event
// counter, or spawn children against the runtime that is actually
// running it.
type TaskContext struct {
	rt   *Runtime
	Task *depsys.TaskNode
	Ctx  context.Context

	// WorkerID is the reused [0, workerCount) slot this body is currently
	// running on (see executor.WorkerIDFromContext); 0 if the body did not
	// run through the executor (never the case for Spawn-created tasks).
	WorkerID int
}

func newTaskContext(rt *Runtime, task *depsys.TaskNode, ctx context.Context) *TaskContext {
	id, _ := executor.WorkerIDFromContext(ctx)
	return &TaskContext{rt: rt, Task: task, Ctx: ctx, WorkerID: id}
}

// Body is a task's executable body (§6: the function a submitted task
// eventually runs).
type Body func(ctx *TaskContext) error

// Spawn spawns a child of this task, the call a task body makes to
// create its own nested work.
func (tc *TaskContext) Spawn(flags TaskKindFlags, accesses []AccessSpec, body Body) (*depsys.TaskNode, error) {
	return tc.rt.Spawn(tc.Task, flags, accesses, body)
}

// Taskwait blocks until every direct child this task has spawned so far
// has finalized (§6 taskwait(site)).
func (tc *TaskContext) Taskwait() {
	tc.rt.Taskwait(tc.Task)
}

// Release gives up one of this task's own declared accesses early (§6
// release_{kind}_region).
func (tc *TaskContext) Release(addr uintptr, length int, kind AccessKind, weak bool) error {
	return tc.rt.Release(tc.Task, addr, length, kind, weak)
}

// Spawn implements §6's create_task immediately followed by submit_task:
// it allocates a TaskNode under parent, declares every access in
// accesses, and hands the task to the executor once its predecessors
// clear.
//
// If flags has If0 set, Spawn additionally implements §6's if0 submission
// rule: the calling goroutine blocks until the task's body has run to
// completion, in all cases — including the "if0 and blocked" case, where
// the literal wording has the submitter wait for readiness and then run
// the body inline. Collapsing both branches onto "block until the body
// itself finishes" gives the same externally observable ordering
// (submitter does not proceed until the if0 task is done) without the
// complexity of handing execution back to a specific goroutine's stack.
func (rt *Runtime) Spawn(parent *depsys.TaskNode, flags TaskKindFlags, accesses []AccessSpec, body Body) (*depsys.TaskNode, error) {
	return rt.spawnLabeled(parent, flags, "", accesses, body)
}

func (rt *Runtime) spawnLabeled(parent *depsys.TaskNode, flags TaskKindFlags, label string, accesses []AccessSpec, body Body) (*depsys.TaskNode, error) {
	task := rt.ds.NewTask(parent, flags)
	rt.traceSpawn(task, parent, label)

	if !flags.Has(If0) {
		rt.pool.Attach(task, func(ctx context.Context) error {
			return rt.runTraced(task, ctx, body)
		})
		ready := rt.ds.Register(task, declareAll(accesses))
		rt.pool.SubmitAll(ready)
		return task, nil
	}

	done := make(chan error, 1)
	rt.pool.Attach(task, func(ctx context.Context) error {
		err := rt.runTraced(task, ctx, body)
		done <- err
		return err
	})

	ready := rt.ds.Register(task, declareAll(accesses))
	rt.pool.SubmitAll(ready)

	err := <-done
	return task, err
}

// runTraced runs body and records its completion as an EventComplete
// TraceEvent, bracketing the call so the sink sees the body's actual
// wall-clock duration regardless of which branch of Spawn attached it.
func (rt *Runtime) runTraced(task *depsys.TaskNode, ctx context.Context, body Body) error {
	start := rt.clock.Now()
	tc := newTaskContext(rt, task, ctx)
	err := body(tc)
	rt.traceComplete(task, tc.WorkerID, start, err)
	return err
}

func (rt *Runtime) traceSpawn(task, parent *depsys.TaskNode, label string) {
	var parentID uint64
	if parent != nil {
		parentID = parent.ID
	}
	_ = rt.sink.Record(context.Background(), instrument.TraceEvent{
		TaskID:    task.ID,
		ParentID:  parentID,
		Kind:      instrument.EventSpawn,
		Label:     label,
		Timestamp: rt.clock.Now(),
	})
}

func (rt *Runtime) traceComplete(task *depsys.TaskNode, workerID int, start time.Time, err error) {
	ev := instrument.TraceEvent{
		TaskID:    task.ID,
		Kind:      instrument.EventComplete,
		WorkerID:  workerID,
		Timestamp: rt.clock.Now(),
		Duration:  rt.clock.Since(start),
	}
	if err != nil {
		ev.Err = err.Error()
	}
	_ = rt.sink.Record(context.Background(), ev)
}

// SpawnKind is Spawn against a kind previously registered with
// RegisterTaskKind, looked up by label — the create_task path a caller
// takes when it only has the kind's label on hand (e.g. a taskloop
// driver iterating the same kind many times) rather than its Go closure.
func (rt *Runtime) SpawnKind(parent *depsys.TaskNode, flags TaskKindFlags, label string, accesses []AccessSpec) (*depsys.TaskNode, error) {
	rt.mu.Lock()
	kind, ok := rt.kinds[label]
	rt.mu.Unlock()
	if !ok {
		return nil, unknownTaskKindError(label)
	}
	return rt.spawnLabeled(parent, flags, label, accesses, kind.Run)
}

// Taskwait implements §6's taskwait(site): the calling goroutine blocks
// until every child spawned from task (directly, not transitively) has
// finalized.
func (rt *Runtime) Taskwait(task *depsys.TaskNode) {
	rt.ds.Taskwait(task)
}

// Release implements §6's release_{kind}[_weak]_region: task gives up
// one declared access before its body has otherwise finished, making any
// successor that only needed that access runnable immediately.
func (rt *Runtime) Release(task *depsys.TaskNode, addr uintptr, length int, kind AccessKind, weak bool) error {
	ready, err := rt.ds.Release(task, addr, length, kind, weak)
	if err != nil {
		return err
	}
	_ = rt.sink.Record(context.Background(), instrument.TraceEvent{
		TaskID:    task.ID,
		Kind:      instrument.EventRelease,
		Timestamp: rt.clock.Now(),
	})
	rt.pool.SubmitAll(ready)
	return nil
}

// CurrentEventCounter implements §6's current_event_counter: the number
// of outstanding increment()s/body-completions that must still drain
// before task's dependencies release.
func (rt *Runtime) CurrentEventCounter(task *depsys.TaskNode) int32 {
	return task.CurrentEvents()
}

// IncrementEvent implements §6's increment(ev, n): defers dependency
// release until n additional decrement() calls have been made.
func (rt *Runtime) IncrementEvent(task *depsys.TaskNode, n int32) {
	task.IncrementEvents(n)
}

// DecrementEvent implements §6's decrement(ev, n). Once every increment
// has been matched and the task's own body has completed, its
// dependencies release and any newly-runnable successors are submitted.
func (rt *Runtime) DecrementEvent(task *depsys.TaskNode, n int32) {
	ready := rt.ds.DecrementEvent(task, n)
	rt.pool.SubmitAll(ready)
}
