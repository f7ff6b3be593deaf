package depsys

import (
	"sync/atomic"

	"github.com/perf-analysis/pkg/collections"
)

// AccessState is the per-(task, address) state machine node described in
// §3. Its flag word is the sole concurrency medium for cross-task
// propagation; successor/child are write-once pointers published with
// release ordering and read with acquire ordering.
type AccessState struct {
	Kind   AccessKind
	Region Region
	Task   *TaskNode

	// Symbols is the bitset used by reduction address translation (§3).
	Symbols *collections.Bitset

	// Reduction is non-nil iff Kind == Reduction.
	Reduction *ReductionInfo

	flags flagWord

	successor atomic.Pointer[AccessState]
	child     atomic.Pointer[AccessState]

	// group is the accessGroup this access joined at registration time —
	// either a fresh run it opens or an existing compatible run/parent
	// scope it joins (including the parent-containment case of §4.2,
	// where the group is the parent task's own access's group). See
	// accessgroup.go.
	group *accessGroup

	weak bool
}

func newAccessState(kind AccessKind, region Region, weak bool, task *TaskNode, symbols *collections.Bitset) *AccessState {
	a := &AccessState{
		Kind:    kind,
		Region:  region,
		Task:    task,
		Symbols: symbols,
		weak:    weak,
	}
	if weak {
		a.flags.or(IsWeak)
	}
	return a
}

// Weak reports whether the access was declared weak.
func (a *AccessState) Weak() bool { return a.weak }

// Flags returns a snapshot of the access's atomic flag word.
func (a *AccessState) Flags() Flags { return a.flags.load() }

// Successor returns the next task's access on the same address under the
// same parent, or nil if none has registered yet.
func (a *AccessState) Successor() *AccessState { return a.successor.Load() }

// Child returns the first nested task's access on the same address, or
// nil.
func (a *AccessState) Child() *AccessState { return a.child.Load() }

// setSuccessor publishes the write-once successor pointer and the
// structural HasNext bit.
func (a *AccessState) setSuccessor(next *AccessState) {
	a.successor.CompareAndSwap(nil, next)
	a.flags.or(HasNext)
}

// setChild publishes the write-once child pointer and the structural
// HasChild bit.
func (a *AccessState) setChild(child *AccessState) {
	a.child.CompareAndSwap(nil, child)
	a.flags.or(HasChild)
}

// IsRunnable implements invariant 1 of §3: a task is runnable iff all
// satisfied bits relevant to its kind are set and, for a non-weak
// commutative access, the semaphore has admitted it.
func (a *AccessState) IsRunnable() bool {
	if a.weak {
		return true
	}
	if a.Kind == Reduction {
		return true
	}
	return a.flags.has(gatingFlag(a.Kind))
}

// applySingle atomically or-ins flags into the access's own word and
// returns the flags observed after the update, implementing §4.3's
// apply_single contract. It is exposed for the three-contract state
// machine §9 describes; the registration/propagation engine in
// bottommap.go drives most transitions through the higher-level
// accessGroup instead, since a single successor pointer cannot by itself
// gate a conflicting successor on an entire run of siblings (see
// accessgroup.go).
func (a *AccessState) applySingle(mask Flags) Flags {
	_, new := a.flags.or(mask)
	return new
}

// satisfyAccess marks this access as having received its kind's gating
// flag(s), making it runnable, and wakes its task if that was the last
// outstanding predecessor edge.
func satisfyAccess(a *AccessState, mailbox *Mailbox) {
	mask := gatingFlag(a.Kind)
	if mask != 0 {
		a.flags.or(mask)
	}
	if a.Task != nil {
		a.Task.predecessorCleared(mailbox)
	}
}
