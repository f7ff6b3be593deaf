package taskapi

import (
	"github.com/perf-analysis/pkg/collections"
	"github.com/perf-analysis/pkg/depsys"
)

// AccessKind re-exports depsys.AccessKind so callers building an
// AccessSpec list never need to import pkg/depsys directly.
type AccessKind = depsys.AccessKind

const (
	Read        = depsys.Read
	Write       = depsys.Write
	ReadWrite   = depsys.ReadWrite
	Concurrent  = depsys.Concurrent
	Commutative = depsys.Commutative
	Reduction   = depsys.Reduction
)

// AccessSpec is one register_*_access[_weak] call (§6), collected up
// front so Spawn can declare every access of a task in a single Register
// pass.
type AccessSpec struct {
	Kind    AccessKind
	Addr    uintptr
	Length  int
	Weak    bool
	Symbols *collections.Bitset

	// ReductionInit, ReductionCombine and ReductionDst are only consulted
	// when Kind is Reduction.
	ReductionInit    depsys.InitFunc
	ReductionCombine depsys.ReduceFunc
	ReductionDst     []byte
}

// ReductionSlot returns this task's private accumulator slot for the
// reduction it declared at addr, allocating and initializing it lazily
// on first use (§4.4: each reduction participant writes its own slot;
// slots combine into the shared accumulator only once every participant
// has finished). Keyed by WorkerID since Go hands out a fresh goroutine
// per task rather than reusing a small fixed set of worker threads.
func (tc *TaskContext) ReductionSlot(addr uintptr) []byte {
	access := tc.Task.Accesses.Find(addr)
	if access == nil || access.Reduction == nil {
		return nil
	}
	return access.Reduction.GetFreeSlot(tc.WorkerID)
}

// ReleaseReductionSlot marks this task done with its reduction slot at
// addr; the slot's storage survives for Combine, called once the last
// participant finalizes or releases.
func (tc *TaskContext) ReleaseReductionSlot(addr uintptr) {
	access := tc.Task.Accesses.Find(addr)
	if access == nil || access.Reduction == nil {
		return
	}
	access.Reduction.ReleaseSlotsInUse(tc.WorkerID)
}

func declareAll(specs []AccessSpec) depsys.AccessDeclarer {
	return func(c *depsys.RegCtx) {
		for _, s := range specs {
			if s.Kind == Reduction {
				c.ReductionAccess(s.Addr, s.Length, s.Weak, s.ReductionInit, s.ReductionCombine, s.ReductionDst)
				continue
			}
			c.Access(s.Kind, s.Addr, s.Length, s.Weak, s.Symbols)
		}
	}
}
