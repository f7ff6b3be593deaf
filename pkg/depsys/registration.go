package depsys

import "github.com/perf-analysis/pkg/collections"

// AccessDeclarer is supplied by the caller (normally the taskapi layer
// translating a compiler-emitted access list) to declare_accesses(task)
// during Register, per §4.6 step 2.
type AccessDeclarer func(*RegCtx)

// RegCtx is the callback context passed to an AccessDeclarer: one
// register_access-shaped method call per access, in any order (§4.6 step
// 3 explicitly allows any iteration order).
type RegCtx struct {
	ds      *DependencySystem
	task    *TaskNode
	mailbox *Mailbox
}

// Access declares a non-reduction access of kind at [addr, addr+length).
// Zero length or a null address is silently ignored (§8).
func (c *RegCtx) Access(kind AccessKind, addr uintptr, length int, weak bool, symbols *collections.Bitset) {
	region := Region{Start: addr, Length: uintptr(length)}
	if region.Empty() {
		return
	}

	if kind == Commutative && !weak {
		c.task.commutativeAddrs = append(c.task.commutativeAddrs, addr)
	}

	access, existed := c.task.Accesses.GetOrAllocate(addr, func() *AccessState {
		return newAccessState(kind, region, weak, c.task, symbols)
	})
	if existed {
		// Same address declared twice on this task: widen in place
		// rather than create a second structural entry (§3 "upgrading").
		access.Kind = Upgrade(access.Kind, kind)
		return
	}

	if c.task.Parent == nil {
		// A root task has no BottomMap to join: vacuously satisfied.
		// bumpedPending pairs with satisfyAccess's decrement so this
		// has zero net effect on predecessorCount, same as a gated
		// access going through BottomMap.Attach.
		access.group = newGroup(kind, true)
		access.group.pending.Add(1)
		bumpedPending(access.Task)
		satisfyAccess(access, c.mailbox)
		return
	}
	c.task.Parent.Children.Attach(addr, access, c.mailbox)
}

// ReadAccess, WriteAccess, ReadWriteAccess and ConcurrentAccess are the
// common-case convenience wrappers over Access.
func (c *RegCtx) ReadAccess(addr uintptr, length int, weak bool) {
	c.Access(Read, addr, length, weak, nil)
}

func (c *RegCtx) WriteAccess(addr uintptr, length int, weak bool) {
	c.Access(Write, addr, length, weak, nil)
}

func (c *RegCtx) ReadWriteAccess(addr uintptr, length int, weak bool) {
	c.Access(ReadWrite, addr, length, weak, nil)
}

func (c *RegCtx) ConcurrentAccess(addr uintptr, length int, weak bool) {
	c.Access(Concurrent, addr, length, weak, nil)
}

// CommutativeAccess declares a commutative access; its address
// contributes a bit to the task's combined semaphore mask unless weak
// (§4.5).
func (c *RegCtx) CommutativeAccess(addr uintptr, length int, weak bool) {
	c.Access(Commutative, addr, length, weak, nil)
}

// ReductionAccess declares a reduction access. A consecutive reduction on
// the same parent-BottomMap address with a matching length joins the
// already-open ReductionInfo rather than starting a fresh one (§4.4); a
// mismatched length starts a new reduction, closing out the old one is
// left to whichever non-reduction access or taskwait/finalize pass
// arrives next, per the BottomMap's own open-reduction bookkeeping.
func (c *RegCtx) ReductionAccess(addr uintptr, length int, weak bool, init InitFunc, combine ReduceFunc, dst []byte) {
	region := Region{Start: addr, Length: uintptr(length)}
	if region.Empty() {
		return
	}

	access, existed := c.task.Accesses.GetOrAllocate(addr, func() *AccessState {
		return newAccessState(Reduction, region, weak, c.task, nil)
	})
	if existed {
		access.Kind = Upgrade(access.Kind, Reduction)
		return
	}

	if c.task.Parent != nil {
		if open := c.task.Parent.Children.OpenReduction(addr); open != nil && open.Length == length {
			open.Attach()
			access.Reduction = open
		}
	}
	if access.Reduction == nil {
		access.Reduction = NewReductionInfo(addr, length, init, combine)
		access.Reduction.Dst = dst
		if c.task.Parent != nil {
			c.task.Parent.Children.SetOpenReduction(addr, access.Reduction)
		}
	}

	if c.task.Parent == nil {
		// Vacuously satisfied; see the matching comment in Access.
		access.group = newGroup(Reduction, true)
		access.group.pending.Add(1)
		bumpedPending(access.Task)
		satisfyAccess(access, c.mailbox)
		return
	}
	c.task.Parent.Children.Attach(addr, access, c.mailbox)
}

// Register implements §4.6's register(task): bump predecessor_count by 2
// as a races-guard, run declare against every access the caller reports,
// drain whatever immediately-satisfiable edges that produced, then drop
// the guard and — if the task has no outstanding dependency edges left —
// request commutative admission. It returns every task (possibly
// including task itself) that became runnable as a result.
func (ds *DependencySystem) Register(task *TaskNode, declare AccessDeclarer) []*TaskNode {
	mailbox := &Mailbox{}

	task.predecessorCount.Add(2)

	ctx := &RegCtx{ds: ds, task: task, mailbox: mailbox}
	declare(ctx)

	mailbox.drain()
	ready := mailbox.TakeReady()

	if task.predecessorCount.Add(-2) == 0 {
		ready = ds.admitCommutative(task, ready, mailbox)
		mailbox.drain()
		ready = append(ready, mailbox.TakeReady()...)
	}

	return ready
}

// admitCommutative requests semaphore admission for task's combined
// commutative mask, computed now that declare_accesses has finished
// (§4.5). A task with no non-weak commutative accesses is trivially
// admitted.
func (ds *DependencySystem) admitCommutative(task *TaskNode, ready []*TaskNode, mailbox *Mailbox) []*TaskNode {
	if len(task.commutativeAddrs) == 0 {
		return append(ready, task)
	}

	mask := CombinedMask(task.commutativeAddrs)
	task.commutativeMask = mask
	if ds.semaphore.RequestAdmission(mask, func(mb *Mailbox) { mb.wake(task) }) {
		return append(ready, task)
	}
	return ready
}
