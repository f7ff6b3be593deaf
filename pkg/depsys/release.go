package depsys

// Release implements the release directive of §4.8: a task may declare
// that it is done with one of its declared accesses before its own body
// finishes, letting dependent successors run early instead of waiting
// for the task's full finalization. addr, length, kind and weak must
// match exactly what was declared at registration; a mismatch is a
// programming error rather than a silent no-op, since silently ignoring
// it would mask a compiler/runtime bookkeeping bug rather than a user
// one.
//
// A released access is marked UNREGISTERED immediately, the same as at
// finalize, and Finalize later skips it rather than processing it twice
// (see the guard in Finalize's access loop).
func (ds *DependencySystem) Release(task *TaskNode, addr uintptr, length int, kind AccessKind, weak bool) ([]*TaskNode, error) {
	access := task.Accesses.Find(addr)
	if access == nil || access.Flags().has(Unregistered) {
		return nil, errReleaseNotDeclared(addr)
	}

	if access.Kind != kind || access.weak != weak || access.Region.Length != uintptr(length) {
		if access.Kind == Reduction && kind == Reduction && access.Reduction != nil && access.Reduction.Length != length {
			return nil, errIncompatibleReduction(addr)
		}
		return nil, errReleaseKindMismatch(addr, access.Kind, kind)
	}

	mailbox := &Mailbox{}
	access.flags.or(Unregistered)

	if task.Parent != nil {
		task.Parent.Children.MemberDone(addr, access, mailbox)
	} else if access.group != nil {
		access.group.memberDone(mailbox)
	}

	if access.Kind == Reduction && access.Reduction != nil {
		ds.closeReductionIfDrained(task, addr, access.Reduction, mailbox)
	}

	mailbox.drain()
	return mailbox.TakeReady(), nil
}
