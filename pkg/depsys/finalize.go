package depsys

// Finalize implements §4.6's finalize(task): the task's body (and, for a
// taskloop, every iteration) has run to completion. Every access the
// task declared is published as UNREGISTERED and drained forward through
// its accessGroup, any reduction this task was the last remaining
// participant of is combined, the task's commutative mask bits (if any)
// are released back to the semaphore, and the task's own removal_count
// contribution clears — possibly cascading disposal eligibility up
// through its ancestors. It returns every task that became runnable as a
// side effect.
//
// The caller is expected to have already run an implicit or explicit
// Taskwait for every child this task spawned (structured completion);
// Finalize does not itself block on outstanding children.
func (ds *DependencySystem) Finalize(task *TaskNode) []*TaskNode {
	mailbox := &Mailbox{}

	task.Accesses.ForAll(func(addr uintptr, a *AccessState) {
		if a.Flags().has(Unregistered) {
			// Already released early via Release; do not drain or close
			// its reduction a second time.
			return
		}
		a.flags.or(Unregistered)
		if task.Parent != nil {
			task.Parent.Children.MemberDone(addr, a, mailbox)
		} else if a.group != nil {
			a.group.memberDone(mailbox)
		}

		if a.Kind == Reduction && a.Reduction != nil {
			ds.closeReductionIfDrained(task, addr, a.Reduction, mailbox)
		}
	})

	task.Children.BroadcastParentDone()

	if task.commutativeMask != 0 {
		ds.semaphore.Release(task.commutativeMask, mailbox)
	}

	if task.Parent != nil {
		task.Parent.ChildFinished()
	}

	mailbox.drain()
	ready := mailbox.TakeReady()

	ds.disposeChain(task)

	return ready
}

// closeReductionIfDrained decrements r's registered count and, once it
// reaches zero, combines every worker slot into the destination and
// clears the parent BottomMap's open-reduction pointer if it still
// refers to r (§4.6 step 2, §4.7 step 2). Reusing r after this point
// would write into its now-nil slot maps, so the pointer must not
// survive the combine.
func (ds *DependencySystem) closeReductionIfDrained(task *TaskNode, addr uintptr, r *ReductionInfo, mailbox *Mailbox) {
	if !r.Close() {
		return
	}
	r.CombineAll()
	if task.Parent != nil && task.Parent.Children.OpenReduction(addr) == r {
		task.Parent.Children.CloseOpenReduction(addr)
	}
}

// disposeChain decrements task's own removal_count contribution and, if
// that was the task's last outstanding reason to stay alive, recurses
// into the parent to clear the per-child contribution that task's
// existence was holding open (§3 invariant 4, "No premature free").
func (ds *DependencySystem) disposeChain(task *TaskNode) {
	if !task.decreaseRemoval() {
		return
	}
	if task.Parent != nil {
		ds.disposeChain(task.Parent)
	}
}
