package depsys

// Taskwait implements §4.7: block the calling goroutine until every
// currently-spawned child of task has finalized. children_countdown was
// initialized to 1 to bias it away from zero while no taskwait is in
// progress (§3); entering a taskwait removes that bias, and if the
// result isn't already zero (some children are still outstanding) the
// call blocks on the same channel ChildFinished signals. Any reduction
// still open on task's own BottomMap is closed on entry: it is detached
// so that children spawned after this taskwait open a fresh one, and its
// slots are combined by closeReductionIfDrained once its last
// participant finalizes, which happens before that participant's
// ChildFinished can end the wait.
func (ds *DependencySystem) Taskwait(task *TaskNode) {
	task.Children.ForAllOpenReductions(func(addr uintptr, r *ReductionInfo) {
		task.Children.CloseOpenReduction(addr)
	})

	if task.childrenCountdown.Add(-1) != 0 {
		<-task.pauseCh
	}

	// Reopen the window: children spawned after this point must bias the
	// countdown away from zero again for the next taskwait (or for the
	// implicit one at finalize).
	task.childrenCountdown.Store(1)
}
