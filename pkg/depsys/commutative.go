package depsys

// CommutativeSemaphore is the single process-wide mutable structure
// inside the core (§4.5, §5). Each non-weak commutative access's
// address hashes to one bit of a 64-bit mask sized to fit one cache
// line; a task's combined mask is the OR of bits over its commutative
// addresses. Admission is granted iff the task's mask does not intersect
// the semaphore's current mask; release admits the longest-waiting
// compatible task, FIFO among ties. False contention (two addresses
// hashing to the same bit) is accepted — it only over-serializes, never
// under-serializes.
type CommutativeSemaphore struct {
	lock    paddedTicketSpinLock
	mask    uint64
	waiters []commutativeWaiter
}

type commutativeWaiter struct {
	mask   uint64
	notify func(*Mailbox)
}

// NewCommutativeSemaphore creates an empty semaphore.
func NewCommutativeSemaphore() *CommutativeSemaphore {
	return &CommutativeSemaphore{}
}

// HashAddress maps an address to one bit of the mask. False positives
// (collisions) are acceptable by design.
func HashAddress(addr uintptr) uint64 {
	h := uint64(addr)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return uint64(1) << (h % 64)
}

// CombinedMask ORs the hashed bit for every address in addrs.
func CombinedMask(addrs []uintptr) uint64 {
	var mask uint64
	for _, a := range addrs {
		mask |= HashAddress(a)
	}
	return mask
}

// RequestAdmission grants the mask immediately if it doesn't overlap the
// current semaphore mask; otherwise the task is parked in FIFO order and
// notify fires (via the mailbox) once a later Release clears it.
func (s *CommutativeSemaphore) RequestAdmission(mask uint64, notify func(*Mailbox)) (admitted bool) {
	s.lock.lock.lock()
	defer s.lock.lock.unlock()

	if mask&s.mask == 0 {
		s.mask |= mask
		return true
	}
	s.waiters = append(s.waiters, commutativeWaiter{mask: mask, notify: notify})
	return false
}

// Release ANDs the complement of mask back into the semaphore, then
// admits every now-compatible waiter in FIFO order, repeating passes
// until none remain eligible.
func (s *CommutativeSemaphore) Release(mask uint64, mailbox *Mailbox) {
	s.lock.lock.lock()
	defer s.lock.lock.unlock()

	s.mask &^= mask

	for {
		admittedAny := false
		for i := 0; i < len(s.waiters); i++ {
			w := s.waiters[i]
			if w.mask&s.mask != 0 {
				continue
			}
			s.mask |= w.mask
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			mailbox.defer_(w.notify)
			admittedAny = true
			break
		}
		if !admittedAny {
			return
		}
	}
}
