package depsys

// CompleteBody is called by the executor once a task's body returns. It
// treats body completion as one decrement of release_count (§3's
// "initially 1 for the task's own completion") rather than finalizing
// unconditionally, so a task with outstanding user events (§6 "Events")
// is not finalized until every one of them has also drained.
func (ds *DependencySystem) CompleteBody(task *TaskNode) []*TaskNode {
	if task.DecrementEvents(1) {
		return ds.Finalize(task)
	}
	return nil
}

// DecrementEvent records the completion of one user-registered event
// (§6's `decrement(ev, n)`); if release_count now reaches zero the task
// finalizes. Returns the tasks that became runnable as a result, or nil
// if the task is still awaiting more events or its own body.
func (ds *DependencySystem) DecrementEvent(task *TaskNode, n int32) []*TaskNode {
	if task.DecrementEvents(n) {
		return ds.Finalize(task)
	}
	return nil
}
