package depsys

import "sync/atomic"

// Flags is the atomic flag word carried by every AccessState (§3). Bits
// are independent and the word is manipulated exclusively through
// atomic.Uint64's CAS loop so every transition is a single atomic
// read-modify-write, never a lock.
type Flags uint64

const (
	ReadSatisfied Flags = 1 << iota
	WriteSatisfied
	ConcurrentSatisfied
	CommutativeSatisfied

	HasNext
	NextIsParent

	HasChild
	ChildReadDone
	ChildWriteDone
	ChildConcurrentDone
	ChildCommutativeDone

	Unregistered
	ParentDone
	ReductionCombined
	IsWeak
)

func (f Flags) has(mask Flags) bool { return f&mask == mask }
func (f Flags) any(mask Flags) bool { return f&mask != 0 }

// flagWord wraps atomic.Uint64 with the CAS-loop or-in primitive used
// throughout the state machine.
type flagWord struct {
	v atomic.Uint64
}

// or atomically or-ins mask into the word and returns the flags observed
// immediately before and after the update.
func (w *flagWord) or(mask Flags) (old, new Flags) {
	if mask == 0 {
		cur := Flags(w.v.Load())
		return cur, cur
	}
	for {
		o := w.v.Load()
		n := o | uint64(mask)
		if o == n {
			return Flags(o), Flags(o)
		}
		if w.v.CompareAndSwap(o, n) {
			return Flags(o), Flags(n)
		}
	}
}

func (w *flagWord) load() Flags { return Flags(w.v.Load()) }

func (w *flagWord) has(mask Flags) bool { return w.load().has(mask) }
