package depsys

import (
	"sync/atomic"

	"github.com/perf-analysis/pkg/collections"
)

// TaskFlags are the boolean lifecycle markers carried by a TaskNode (§2:
// "flags (if0, wait, weak, final, spawned, taskloop...)").
type TaskFlags uint8

const (
	If0 TaskFlags = 1 << iota
	Wait
	WeakTask
	Final
	Spawned
	Taskloop
)

func (f TaskFlags) Has(mask TaskFlags) bool { return f&mask == mask }

// TaskNode holds the per-task lifecycle counters and bookkeeping
// described in §3 "Lifecycle counters on a task" and §4: predecessor
// count, children countdown, removal count, release count, plus the
// task's own AccessMap and (if it has spawned children) BottomMap.
type TaskNode struct {
	ID     uint64
	Flags  TaskFlags
	Parent *TaskNode

	Accesses *AccessMap
	Children *BottomMap

	predecessorCount atomic.Int32
	childrenCountdown atomic.Int32
	removalCount      atomic.Int32
	releaseCount      atomic.Int32

	// commutativeMask is the OR of HashAddress over every non-weak
	// commutative address this task declared; computed once registration
	// has seen every access (§4.5).
	commutativeMask uint64

	// commutativeAddrs accumulates the addresses behind commutativeMask
	// while declare_accesses is still running.
	commutativeAddrs []uintptr

	// pauseCh is signalled by the dependency system when a taskwait's
	// blocking condition clears; Taskwait waits on it (§5: "A worker may
	// block inside taskwait").
	pauseCh chan struct{}
}

// NewTaskNode creates a task with its own AccessMap and BottomMap, ready
// for dependency registration.
func NewTaskNode(id uint64, parent *TaskNode, flags TaskFlags, linearCutoff int) *TaskNode {
	t := &TaskNode{
		ID:     id,
		Flags:  flags,
		Parent: parent,
		pauseCh: make(chan struct{}, 1),
	}
	t.Accesses = NewAccessMap(linearCutoff)
	t.Children = NewBottomMap(t)
	t.childrenCountdown.Store(1) // §3: "initially +1 to represent not blocked"
	t.removalCount.Store(1)      // "+1 for dependencies still attached"
	t.releaseCount.Store(1)      // "initially 1 for the task's own completion"
	if parent != nil {
		parent.addChild()
	}
	return t
}

func (t *TaskNode) addChild() {
	t.childrenCountdown.Add(1)
	t.removalCount.Add(1)
}

// predecessorCleared decrements predecessor_count by one cleared edge;
// once it reaches zero the task is runnable (subject to any outstanding
// commutative admission, checked by the caller).
func (t *TaskNode) predecessorCleared(mailbox *Mailbox) {
	if t.predecessorCount.Add(-1) == 0 {
		mailbox.wake(t)
	}
}

// ChildFinished decrements children_countdown by one; if it reaches
// zero, any blocked taskwait resumes.
func (t *TaskNode) ChildFinished() {
	if t.childrenCountdown.Add(-1) == 0 {
		select {
		case t.pauseCh <- struct{}{}:
		default:
		}
	}
}

// decreaseRemoval decrements removal_count; returns true once it reaches
// zero, authorizing destruction (§3 invariant 4).
func (t *TaskNode) decreaseRemoval() bool {
	return t.removalCount.Add(-1) == 0
}

// IncrementEvents adds n to release_count, deferring dependency release
// (§6 "Events").
func (t *TaskNode) IncrementEvents(n int32) {
	t.releaseCount.Add(n)
}

// DecrementEvents subtracts n from release_count; returns true once both
// body completion and events have drained.
func (t *TaskNode) DecrementEvents(n int32) bool {
	return t.releaseCount.Add(-n) == 0
}

// CurrentEvents reports release_count's current value (§6
// "current_event_counter").
func (t *TaskNode) CurrentEvents() int32 {
	return t.releaseCount.Load()
}

// SymbolBitset allocates a fresh bitset sized for reduction address
// translation (§3 AccessState.symbols); every call returns a new,
// unpooled bitset.
func SymbolBitset(size int) *collections.Bitset {
	return collections.NewBitset(size)
}
