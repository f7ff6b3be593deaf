package depsys

import "sync/atomic"

// ReduceFunc combines a worker-private slot's contribution into the
// accumulator at dst.
type ReduceFunc func(dst, slot []byte)

// InitFunc initializes a freshly allocated worker-private slot.
type InitFunc func(slot []byte)

// ReductionInfo is the shared descriptor for a set of reduction accesses
// on the same (address, length, op) (§4.4). It outlives every access
// that references it; accesses increment its registered counter on
// registration and decrement it on finalization/closure. It is combined
// and freed when the counter reaches zero (§3 invariant 5).
type ReductionInfo struct {
	Address uintptr
	Length  int
	Init    InitFunc
	Combine ReduceFunc

	// Dst is the real accumulator memory, captured as a slice view at
	// creation time; Go has no equivalent of reinterpreting a bare
	// address, so callers supply the view directly instead of the
	// original's pointer-walking address translation.
	Dst []byte

	registered atomic.Int32

	mu    paddedTicketSpinLock
	slots map[int][]byte // worker id -> private slot
	inUse map[int]bool   // worker id -> has an unreleased claim
	free  *Bitset64      // which worker ids have ever had a slot allocated
}

// Bitset64 is a small fixed-capacity bitset sized to typical worker
// counts, guarded by the same spin lock as the slot map (§5: "Per-task
// ReductionInfo slot allocation is guarded by a short spin lock around a
// free-slot bitset").
type Bitset64 uint64

func (b *Bitset64) set(i int)    { *b |= 1 << uint(i) }
func (b Bitset64) test(i int) bool { return b&(1<<uint(i)) != 0 }

// NewReductionInfo creates a reduction descriptor with registered count
// 1 (the access that opened it).
func NewReductionInfo(address uintptr, length int, init InitFunc, combine ReduceFunc) *ReductionInfo {
	r := &ReductionInfo{
		Address: address,
		Length:  length,
		Init:    init,
		Combine: combine,
		slots:   make(map[int][]byte),
		inUse:   make(map[int]bool),
		free:    new(Bitset64),
	}
	r.registered.Store(1)
	return r
}

// Attach increments the registered counter for one more participating
// access.
func (r *ReductionInfo) Attach() { r.registered.Add(1) }

// GetFreeSlot returns the slot writable by worker, allocating and
// initializing it lazily on first claim. Consecutive claims by the same
// worker return the same slot until ReleaseSlotsInUse is called.
func (r *ReductionInfo) GetFreeSlot(worker int) []byte {
	r.mu.lock.lock()
	defer r.mu.lock.unlock()

	if slot, ok := r.slots[worker]; ok {
		r.inUse[worker] = true
		return slot
	}

	slot := make([]byte, r.Length)
	if r.Init != nil {
		r.Init(slot)
	}
	r.slots[worker] = slot
	r.inUse[worker] = true
	r.free.set(worker)
	return slot
}

// ReleaseSlotsInUse marks worker's current slot as no longer actively
// claimed, called at the task's end; the slot storage itself survives
// until Combine.
func (r *ReductionInfo) ReleaseSlotsInUse(worker int) {
	r.mu.lock.lock()
	defer r.mu.lock.unlock()
	r.inUse[worker] = false
}

// Close decrements the registered counter. Once it reaches zero the
// caller must invoke Combine exactly once.
func (r *ReductionInfo) Close() (shouldCombine bool) {
	return r.registered.Add(-1) == 0
}

// CombineAll applies Combine from every initialized slot into Dst, in
// worker-id order for determinism, then frees slot storage. Correct
// regardless of which worker took which slot, since the operator is
// expected to be associative/commutative (§8 "Reduction correctness").
func (r *ReductionInfo) CombineAll() {
	r.mu.lock.lock()
	defer r.mu.lock.unlock()

	maxWorker := -1
	for worker := range r.slots {
		if worker > maxWorker {
			maxWorker = worker
		}
	}
	for worker := 0; worker <= maxWorker; worker++ {
		slot, ok := r.slots[worker]
		if !ok {
			continue
		}
		if r.Combine != nil {
			r.Combine(r.Dst, slot)
		}
	}
	r.slots = nil
	r.inUse = nil
}
