package taskapi

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/perf-analysis/pkg/collections"
	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/depsys"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/executor"
	"github.com/perf-analysis/pkg/instrument"
	"github.com/perf-analysis/pkg/utils"
)

// Version is the interface version this package implements, checked by
// CheckVersion (§6 "check_version").
const Version = 1

// TaskKind is the registration handle returned by RegisterTaskKind (§6
// "register_task_kind"): a label plus the function run when a task of
// this kind executes.
type TaskKind struct {
	Label string
	Run   Body
}

// Runtime bundles the dependency system and its executor behind the §6
// surface a task author actually calls. It is the taskapi analogue of
// internal/scheduler.Scheduler wiring a processor to a worker pool.
type Runtime struct {
	ds    *depsys.DependencySystem
	pool  *executor.Pool
	log   utils.Logger
	clock utils.Clock
	sink  instrument.Sink

	mu    sync.Mutex
	kinds map[string]*TaskKind
}

// Option configures optional Runtime behavior not carried by
// config.Config itself (currently just the trace sink, since a Sink is
// a Go interface value rather than something viper can unmarshal).
type Option func(*Runtime)

// WithSink attaches sink so every Spawn/Release records a TraceEvent to
// it. Unset, a Runtime records to instrument.NopSink.
func WithSink(sink instrument.Sink) Option {
	return func(rt *Runtime) {
		if sink != nil {
			rt.sink = sink
		}
	}
}

// New builds a Runtime from cfg (§6 "init()"). Call Shutdown once the
// root taskwait/program has finished.
func New(cfg *config.Config, log utils.Logger, opts ...Option) *Runtime {
	if log == nil {
		log = &utils.NullLogger{}
	}

	ds := depsys.New(
		depsys.WithAccessMapLinearCutoff(cfg.Depsys.AccessMapLinearCutoff),
		depsys.WithDebugAssertions(cfg.Depsys.DebugAssertions),
		depsys.WithLogger(log),
	)
	pool := executor.New(ds, cfg.Executor.WorkerCount, cfg.Executor.TaskQueueSize, log)

	rt := &Runtime{
		ds:    ds,
		pool:  pool,
		log:   log,
		clock: utils.NewRealClock(),
		sink:  instrument.NopSink{},
		kinds: make(map[string]*TaskKind),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// CheckVersion reports whether the caller's expected interface version is
// compatible with Version (§6 "check_version").
func CheckVersion(expected int) error {
	if expected != Version {
		return apperrors.New(apperrors.CodeProgrammingError,
			fmt.Sprintf("taskapi version mismatch: runtime is %d, caller expects %d", Version, expected))
	}
	return nil
}

// RegisterTaskKind records a task kind under label (§6
// "register_task_kind"), later referenced by Spawn.
func (rt *Runtime) RegisterTaskKind(label string, run Body) *TaskKind {
	kind := &TaskKind{Label: label, Run: run}
	rt.mu.Lock()
	rt.kinds[label] = kind
	rt.mu.Unlock()
	return kind
}

// Yield cooperatively offers the scheduler a chance to run other
// goroutines (§6 "yield()"). Go's runtime already preempts, so this is a
// direct runtime.Gosched, kept as its own entry point so task bodies have
// the same call they'd make against any other nanos6-shaped API.
func (rt *Runtime) Yield() {
	runtime.Gosched()
}

// WaitFor blocks the calling goroutine for at least d, grounded on §6's
// "wait_for(us)" (a task-local timed wait that does not release the
// worker slot it occupies, unlike BlockCurrent/Unblock in blocking.go).
func (rt *Runtime) WaitFor(d time.Duration) {
	<-rt.clock.After(d)
}

// SpawnFunction runs fn as a detached, unordered task outside the
// dependency graph (§6 "spawn_function"): it declares no accesses and is
// not attached to a parent's children countdown, so it never blocks a
// taskwait and never imposes a dependency on anything else. onDone, if
// non-nil, runs after fn on the same goroutine, with doneArgs available
// to it via closure (Go has no separate C-style args payload to thread
// through).
func (rt *Runtime) SpawnFunction(label string, fn func(), onDone func()) {
	rt.pool.Spawn(label, func() error {
		fn()
		if onDone != nil {
			onDone()
		}
		return nil
	})
}

// Shutdown stops accepting new work and waits for everything already
// submitted to finish draining (§6 "shutdown()").
func (rt *Runtime) Shutdown() error {
	err := rt.pool.Wait()
	rt.pool.Close()
	if closeErr := rt.sink.Close(); closeErr != nil {
		rt.log.Warn("trace sink close failed: %v", closeErr)
	}
	return err
}

// SymbolBitset allocates a fresh bitset sized for reduction address
// translation, exposed here so callers building an AccessSpec list don't
// need to import pkg/collections or pkg/depsys directly.
func SymbolBitset(size int) *collections.Bitset {
	return depsys.SymbolBitset(size)
}
