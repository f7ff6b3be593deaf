package depsys

// Mailbox is the worker-local deferred queue of inter-access propagation
// work (§5: "the deferred mailbox is worker-local and drained before
// returning control"). It is grounded on the source's CPUDependencyData:
// a per-worker scratch struct accumulating satisfied originators,
// commutative-satisfied originators, and deletable originators produced
// while walking the flag-word chain, so none of that work recurses
// through the call stack.
type Mailbox struct {
	pending   []func(*Mailbox)
	ready     []*TaskNode
	deletable []*AccessState
}

// defer queues propagation work to run once the caller has finished its
// own atomic transition, breaking recursion across long access chains.
func (m *Mailbox) defer_(fn func(*Mailbox)) {
	m.pending = append(m.pending, fn)
}

// wake records a task that became runnable as a result of propagation.
func (m *Mailbox) wake(t *TaskNode) {
	if t == nil {
		return
	}
	m.ready = append(m.ready, t)
}

// markDeletable records an access whose owning task's removal count has
// reached zero.
func (m *Mailbox) markDeletable(a *AccessState) {
	m.deletable = append(m.deletable, a)
}

// drain runs queued propagation work until the queue is empty, including
// work newly enqueued by earlier entries.
func (m *Mailbox) drain() {
	for len(m.pending) > 0 {
		fn := m.pending[0]
		m.pending = m.pending[1:]
		fn(m)
	}
}

// TakeReady empties and returns the tasks that became runnable during
// this mailbox's lifetime; the caller submits them to the executor.
func (m *Mailbox) TakeReady() []*TaskNode {
	r := m.ready
	m.ready = nil
	return r
}

// TakeDeletable empties and returns accesses ready for disposal.
func (m *Mailbox) TakeDeletable() []*AccessState {
	d := m.deletable
	m.deletable = nil
	return d
}

// Empty reports whether the mailbox has no queued work and nothing to
// report back to the caller.
func (m *Mailbox) Empty() bool {
	return len(m.pending) == 0 && len(m.ready) == 0 && len(m.deletable) == 0
}
