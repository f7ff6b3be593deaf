package depsys

import (
	"sync/atomic"
)

// spinReadsBetweenCheck bounds how many relaxed reads a waiter spins
// through before re-issuing an acquire load, mirroring the source's
// SPIN_LOCK_READS_BETWEEN_CMPXCHG constant.
const spinReadsBetweenCheck = 1000

const cacheLineSize = 64

// ticketSpinLock is a FIFO ticket lock: each locker atomically draws a
// ticket and spins until the current-ticket counter reaches it. There is
// no ecosystem equivalent among the retrieved examples (see DESIGN.md);
// it is hand-rolled on sync/atomic because a blocking sync.Mutex would
// violate §5's requirement that short critical sections never block on
// the executor.
type ticketSpinLock struct {
	current atomic.Uint32
	next    atomic.Uint32
}

func (l *ticketSpinLock) lock() {
	ticket := l.next.Add(1) - 1
	for l.current.Load() != ticket {
		spinsLeft := spinReadsBetweenCheck
		for l.current.Load() != ticket && spinsLeft > 0 {
			spinsLeft--
		}
	}
}

func (l *ticketSpinLock) tryLock() bool {
	ticket := l.next.Load()
	if l.current.Load() != ticket {
		return false
	}
	return l.next.CompareAndSwap(ticket, ticket+1)
}

func (l *ticketSpinLock) unlock() {
	l.current.Add(1)
}

// paddedTicketSpinLock cache-line-pads a ticketSpinLock so it never
// shares a line with neighboring fields, matching PaddedTicketSpinLock.hpp.
// CommutativeSemaphore and ReductionInfo's free-slot bitset both embed
// one around their hot spin-guarded state.
type paddedTicketSpinLock struct {
	_    [cacheLineSize]byte
	lock ticketSpinLock
	_    [cacheLineSize]byte
}
