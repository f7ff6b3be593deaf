package depsys

import "sync/atomic"

// accessGroup is the internal bookkeeping device that makes the
// single-pointer BottomMap chain described in §4.2 correctly gate a
// conflicting successor on *every* member of a compatible run, not just
// the structurally-last one. It is not a type the specification names;
// it exists because a run of readers (or concurrents, or reduction
// siblings) may finish in any order, and a subsequent writer must wait
// for all of them, not merely the last one registered.
//
// A group is also reused to model parent/child containment (§4.3
// "Parent/child propagation"): a child access that nests under a
// parent's own access joins the parent's group exactly as a sibling
// would, so the parent's own UNREGISTERED transition is gated on every
// CHILD_*_DONE contribution draining, matching HasChild/ChildXDone.
type accessGroup struct {
	kind AccessKind

	// pending counts members of the group (the accesses that joined it)
	// which have not yet finalized.
	pending atomic.Int32

	// ready reports whether the group's own predecessor condition has
	// already cleared. false means members that join before readiness is
	// reached must be parked on waiting and satisfied later.
	ready atomic.Bool

	mu      paddedTicketSpinLock
	waiting []*AccessState   // members parked until ready fires
	onDrain []func(*Mailbox) // continuations fired once pending hits 0 (after ready)
	fired   bool
}

func newGroup(kind AccessKind, ready bool) *accessGroup {
	g := &accessGroup{kind: kind}
	g.pending.Store(0)
	g.ready.Store(ready)
	return g
}

// join adds a member to the group. If the group is already ready, the
// member is satisfied immediately (via satisfy); otherwise it is parked
// until the group becomes ready.
//
// pending and fired are mutated together under mu: a group that already
// fired (drained to zero members with nothing left to arrive) can still
// gain a late-arriving sibling — BottomMap.Attach keeps joining new
// compatible accesses to a pred's group as they're registered, and an
// earlier member may finish and drain the group to zero before a later
// sibling even registers. Incrementing pending without also clearing
// fired would leave onDrained() treating the group as fully drained
// while this new member is still outstanding.
func (g *accessGroup) join(a *AccessState, satisfy func(*AccessState, *Mailbox), mailbox *Mailbox) {
	g.mu.lock.lock()
	g.pending.Add(1)
	g.fired = false
	if g.ready.Load() {
		g.mu.lock.unlock()
		satisfy(a, mailbox)
		return
	}
	g.waiting = append(g.waiting, a)
	g.mu.lock.unlock()
}

// markReady flips the group to ready and satisfies every parked member.
// Called once, when whatever the group's first member was waiting on
// has itself cleared.
func (g *accessGroup) markReady(satisfy func(*AccessState, *Mailbox), mailbox *Mailbox) {
	g.mu.lock.lock()
	if g.ready.Load() {
		g.mu.lock.unlock()
		return
	}
	g.ready.Store(true)
	waiting := g.waiting
	g.waiting = nil
	g.mu.lock.unlock()

	for _, a := range waiting {
		satisfy(a, mailbox)
	}
}

// onDrained registers a continuation to run once every member of the
// group has finalized (pending reaches 0) *and* the group is ready. If
// the group has already drained, the continuation runs (deferred)
// immediately.
func (g *accessGroup) onDrained(fn func(*Mailbox), mailbox *Mailbox) {
	g.mu.lock.lock()
	if g.fired {
		g.mu.lock.unlock()
		mailbox.defer_(fn)
		return
	}
	g.onDrain = append(g.onDrain, fn)
	g.mu.lock.unlock()
}

// memberDone decrements the pending count for one member's finalization
// and, once it reaches zero, fires every registered drain continuation
// (deferred onto the mailbox so propagation never recurses through the
// call stack).
func (g *accessGroup) memberDone(mailbox *Mailbox) {
	left := g.pending.Add(-1)
	if left > 0 {
		return
	}

	g.mu.lock.lock()
	if g.fired {
		g.mu.lock.unlock()
		return
	}
	g.fired = true
	fns := g.onDrain
	g.onDrain = nil
	g.mu.lock.unlock()

	for _, fn := range fns {
		mailbox.defer_(fn)
	}
}
