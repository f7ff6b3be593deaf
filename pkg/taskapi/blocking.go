package taskapi

// BlockingContext is the opaque handle returned by
// CurrentBlockingContext (§6 nanos6_get_current_blocking_context): it is
// single-use, good for exactly one block/unblock cycle.
//
// ch is buffered to size 1 so that an Unblock racing ahead of its
// matching BlockCurrentTask (explicitly permitted by §6: "this function
// can be called before the actual call to block_current_task") is not
// lost: the send lands in the buffer and the later receive drains it
// immediately instead of blocking.
type BlockingContext struct {
	ch chan struct{}
}

// CurrentBlockingContext implements §6's current_blocking_context.
func CurrentBlockingContext() *BlockingContext {
	return &BlockingContext{ch: make(chan struct{}, 1)}
}

// BlockCurrentTask implements §6's block_current: it blocks the calling
// goroutine until a matching UnblockTask call arrives. The runtime does
// not run anything else on this goroutine's behalf while blocked, since
// Go goroutines, unlike nosv worker threads, do not need the thread
// freed up to keep other tasks running — the pool's other workers keep
// making progress regardless.
func (rt *Runtime) BlockCurrentTask(bc *BlockingContext) {
	<-bc.ch
}

// UnblockTask implements §6's unblock: it marks bc as unblocked,
// releasing a concurrent or future BlockCurrentTask(bc) call. It never
// blocks itself.
func (rt *Runtime) UnblockTask(bc *BlockingContext) {
	select {
	case bc.ch <- struct{}{}:
	default:
	}
}
