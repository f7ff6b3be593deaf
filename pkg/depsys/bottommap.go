package depsys

// bottomEntry is one BottomMap slot: the last child access registered at
// an address, plus the accessGroup that gates whatever arrives next, and
// the open reduction (if any) currently attached there (§4.2).
type bottomEntry struct {
	last          *AccessState
	openReduction *ReductionInfo
}

// BottomMap is a parent task's address→last-child-access map (§2, §4.2).
// It is only ever mutated by the parent's own worker during that
// parent's active scope (spawning children, taskwait, finalization) —
// §5's "no cross-worker writes" — so it needs no internal locking beyond
// what accessGroup itself provides for cross-worker finalize races.
type BottomMap struct {
	owner   *TaskNode
	entries map[uintptr]*bottomEntry
}

// NewBottomMap creates an empty BottomMap scoped to owner.
func NewBottomMap(owner *TaskNode) *BottomMap {
	return &BottomMap{owner: owner, entries: make(map[uintptr]*bottomEntry)}
}

// Attach registers newAccess as the next access at addr, publishing the
// successor edge against whatever was previously last there (or, absent
// that, against the owner task's own access at the same address — the
// parent/child containment case of §4.2), and wiring newAccess into the
// resulting accessGroup. Any predecessor edge that isn't immediately
// satisfied bumps task.predecessorCount by one; the caller is
// responsible for the registration-phase +2/-2 guard described in §4.6.
func (bm *BottomMap) Attach(addr uintptr, newAccess *AccessState, mailbox *Mailbox) {
	entry, existing := bm.entries[addr]
	if !existing {
		entry = &bottomEntry{}
		bm.entries[addr] = entry
	}

	pred := entry.last
	if pred == nil {
		pred = bm.parentContainmentPredecessor(addr, newAccess)
	}

	if pred == nil {
		// Root: vacuously satisfied. Still pairs with bumpedPending so
		// the registration-phase +2/-2 guard in Register sees a net
		// zero effect on predecessorCount, the same as every gated
		// branch below.
		newAccess.group = newGroup(newAccess.Kind, true)
		newAccess.group.pending.Add(1)
		bumpedPending(newAccess.Task)
		satisfyAccess(newAccess, mailbox)
		entry.last = newAccess
		return
	}

	pred.setSuccessor(newAccess)
	predGroup := pred.group

	if readCompatible(pred.Kind, newAccess.Kind) && predGroup != nil {
		newAccess.group = predGroup
		bumpedPending(newAccess.Task)
		predGroup.join(newAccess, satisfyAccess, mailbox)
	} else {
		g := newGroup(newAccess.Kind, false)
		g.pending.Add(1)
		newAccess.group = g
		if predGroup != nil {
			bumpedPending(newAccess.Task)
			predGroup.onDrained(func(mb *Mailbox) {
				satisfyAccess(newAccess, mb)
				g.markReady(satisfyAccess, mb)
			}, mailbox)
		} else {
			satisfyAccess(newAccess, mailbox)
			g.markReady(satisfyAccess, mailbox)
		}
	}

	entry.last = newAccess
}

// parentContainmentPredecessor implements §4.2's fallback: "the parent's
// own access at A (if any) becomes the predecessor, and its child
// pointer is set to A."
func (bm *BottomMap) parentContainmentPredecessor(addr uintptr, child *AccessState) *AccessState {
	if bm.owner == nil || bm.owner.Accesses == nil {
		return nil
	}
	parentAccess := bm.owner.Accesses.Find(addr)
	if parentAccess == nil {
		return nil
	}
	parentAccess.setChild(child)
	bm.setChildDone(parentAccess, child.Kind)
	return parentAccess
}

// setChildDone OR-ins the matching CHILD_*_DONE bit into the parent's
// own access flags once a nested child of that kind attaches (§3). The
// parent's actual disposability still waits on the parent's accessGroup
// fully draining (every attached child finalizing), which is enforced
// by the group pending countdown in Attach/memberDone — these bits are
// the observable per-kind record the specification names.
func (bm *BottomMap) setChildDone(parentAccess *AccessState, childKind AccessKind) {
	switch childKind {
	case Read:
		parentAccess.flags.or(ChildReadDone)
	case Write, ReadWrite:
		parentAccess.flags.or(ChildWriteDone)
	case Concurrent:
		parentAccess.flags.or(ChildConcurrentDone)
	case Commutative:
		parentAccess.flags.or(ChildCommutativeDone)
	}
}

func bumpedPending(t *TaskNode) {
	if t != nil {
		t.predecessorCount.Add(1)
	}
}

// CloseOpenReduction detaches and returns the open ReductionInfo at
// addr, if any, clearing the slot so a subsequent non-reduction access
// starts fresh (§4.6 step 2, §4.7 step 2).
func (bm *BottomMap) CloseOpenReduction(addr uintptr) *ReductionInfo {
	entry, ok := bm.entries[addr]
	if !ok {
		return nil
	}
	r := entry.openReduction
	entry.openReduction = nil
	return r
}

// SetOpenReduction records the ReductionInfo currently accepting
// consecutive reduction children at addr.
func (bm *BottomMap) SetOpenReduction(addr uintptr, r *ReductionInfo) {
	entry, ok := bm.entries[addr]
	if !ok {
		entry = &bottomEntry{}
		bm.entries[addr] = entry
	}
	entry.openReduction = r
}

// OpenReduction returns the currently open ReductionInfo at addr, if
// any.
func (bm *BottomMap) OpenReduction(addr uintptr) *ReductionInfo {
	entry, ok := bm.entries[addr]
	if !ok {
		return nil
	}
	return entry.openReduction
}

// ForAllOpenReductions calls fn for every address with a currently-open
// reduction, used by taskwait/finalize to close them all (§4.6 step 2,
// §4.7 step 2).
func (bm *BottomMap) ForAllOpenReductions(fn func(addr uintptr, r *ReductionInfo)) {
	for addr, entry := range bm.entries {
		if entry.openReduction != nil {
			fn(addr, entry.openReduction)
		}
	}
}

// BroadcastParentDone OR-ins PARENT_DONE onto the last access at every
// address in the map, signalling that the owning task (acting here as a
// parent) has itself finalized and will register no further children
// (§3: "PARENT_DONE is broadcast by the parent on its finalization").
// Only the chain's last-registered access is reachable from this map, so
// earlier siblings that have already finalized and dropped out do not
// need the bit — their own disposal was already decided via their group
// fully draining.
func (bm *BottomMap) BroadcastParentDone() {
	for _, entry := range bm.entries {
		if entry.last != nil {
			entry.last.flags.or(ParentDone)
		}
	}
}

// MemberDone reports that one access belonging to the group at addr has
// finalized (§4.6 step 1 "publish UNREGISTERED and drain the message
// chain forward").
func (bm *BottomMap) MemberDone(addr uintptr, a *AccessState, mailbox *Mailbox) {
	if a.group != nil {
		a.group.memberDone(mailbox)
	}
}
