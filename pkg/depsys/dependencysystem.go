package depsys

import (
	"sync/atomic"

	"github.com/perf-analysis/pkg/utils"
)

// DependencySystem is the core object described by §2: it owns no worker
// threads and interprets no access contents, only addresses, lengths and
// kinds. A process constructs exactly one and shares it across every
// worker; the one piece of process-wide mutable state it holds directly
// is the CommutativeSemaphore (§4.5) — everything else lives on the
// per-task AccessMap/BottomMap graph reachable from the tasks themselves.
type DependencySystem struct {
	semaphore *CommutativeSemaphore

	linearCutoff int
	debug        bool
	log          utils.Logger

	nextTaskID atomic.Uint64
}

// Option configures a DependencySystem at construction.
type Option func(*DependencySystem)

// WithAccessMapLinearCutoff overrides the default linear/hash crossover
// for per-task AccessMaps (§4.1).
func WithAccessMapLinearCutoff(n int) Option {
	return func(ds *DependencySystem) { ds.linearCutoff = n }
}

// WithDebugAssertions enables the extra invariant checks §7.4 calls out
// as debug-build-only (double finalize, mailbox reentrancy).
func WithDebugAssertions(enabled bool) Option {
	return func(ds *DependencySystem) { ds.debug = enabled }
}

// WithLogger overrides the logger used for debug-assertion failures and
// lifecycle tracing. Defaults to utils.NullLogger.
func WithLogger(l utils.Logger) Option {
	return func(ds *DependencySystem) { ds.log = l }
}

// New creates a DependencySystem ready to register and finalize tasks.
func New(opts ...Option) *DependencySystem {
	ds := &DependencySystem{
		semaphore:    NewCommutativeSemaphore(),
		linearCutoff: 20,
		log:          &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// NewTask allocates a TaskNode under parent (nil for a root task) and
// links it into the parent's child bookkeeping (§3's removal_count,
// children_countdown).
func (ds *DependencySystem) NewTask(parent *TaskNode, flags TaskFlags) *TaskNode {
	id := ds.nextTaskID.Add(1)
	return NewTaskNode(id, parent, flags, ds.linearCutoff)
}

// assertf logs an invariant violation when debug assertions are enabled.
// It never panics: a core that crashes on an internal bookkeeping
// surprise is worse than one that logs and keeps the process alive
// (§7.4 "fail loud in debug builds, fail safe in release ones").
func (ds *DependencySystem) assertf(cond bool, msg string, args ...interface{}) {
	if !ds.debug || cond {
		return
	}
	ds.log.Error(msg, args...)
}
