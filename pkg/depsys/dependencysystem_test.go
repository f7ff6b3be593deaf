package depsys_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/depsys"
)

func newDS() *depsys.DependencySystem {
	return depsys.New(depsys.WithAccessMapLinearCutoff(4), depsys.WithDebugAssertions(true))
}

func noAccesses(*depsys.RegCtx) {}

func TestRegister_RootTaskVacuouslySatisfied(t *testing.T) {
	ds := newDS()
	task := ds.NewTask(nil, 0)

	ready := ds.Register(task, func(c *depsys.RegCtx) {
		c.WriteAccess(uintptr(1), 8, false)
	})

	require.Len(t, ready, 1)
	assert.Same(t, task, ready[0])
}

func TestRegister_TwoReadersRunConcurrently(t *testing.T) {
	ds := newDS()
	addr := uintptr(0x1000)
	parent := ds.NewTask(nil, 0)
	ds.Register(parent, noAccesses)

	r1 := ds.NewTask(parent, 0)
	ready1 := ds.Register(r1, func(c *depsys.RegCtx) { c.ReadAccess(addr, 8, false) })
	require.Len(t, ready1, 1, "a read with no predecessor must be immediately runnable")

	r2 := ds.NewTask(parent, 0)
	ready2 := ds.Register(r2, func(c *depsys.RegCtx) { c.ReadAccess(addr, 8, false) })
	require.Len(t, ready2, 1, "a second read joining a compatible run must also be immediately runnable")
}

func TestRegister_WriteWaitsForPriorRead(t *testing.T) {
	ds := newDS()
	addr := uintptr(0x2000)
	parent := ds.NewTask(nil, 0)
	ds.Register(parent, noAccesses)

	reader := ds.NewTask(parent, 0)
	ready := ds.Register(reader, func(c *depsys.RegCtx) { c.ReadAccess(addr, 8, false) })
	require.Len(t, ready, 1)

	writer := ds.NewTask(parent, 0)
	ready = ds.Register(writer, func(c *depsys.RegCtx) { c.WriteAccess(addr, 8, false) })
	assert.Empty(t, ready, "a write registered after an unfinished read must not be runnable yet")

	ready = ds.Finalize(reader)
	require.Len(t, ready, 1, "finalizing the only reader must release the waiting writer")
	assert.Same(t, writer, ready[0])
}

func TestRelease_LetsSuccessorRunBeforeFinalize(t *testing.T) {
	ds := newDS()
	addr := uintptr(0x3000)
	parent := ds.NewTask(nil, 0)
	ds.Register(parent, noAccesses)

	first := ds.NewTask(parent, 0)
	ds.Register(first, func(c *depsys.RegCtx) { c.WriteAccess(addr, 8, false) })

	second := ds.NewTask(parent, 0)
	ready := ds.Register(second, func(c *depsys.RegCtx) { c.WriteAccess(addr, 8, false) })
	assert.Empty(t, ready)

	ready, err := ds.Release(first, addr, 8, depsys.Write, false)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Same(t, second, ready[0])
}

func TestRelease_MismatchIsError(t *testing.T) {
	ds := newDS()
	addr := uintptr(0x4000)
	task := ds.NewTask(nil, 0)
	ds.Register(task, func(c *depsys.RegCtx) { c.WriteAccess(addr, 8, false) })

	_, err := ds.Release(task, addr, 8, depsys.Read, false)
	assert.Error(t, err)
}

func TestCommutativeAdmission_SerializesOverlappingMasks(t *testing.T) {
	ds := newDS()
	addr := uintptr(0x5000)

	var running int32
	var maxRunning int32
	var wg sync.WaitGroup

	// launch runs r's critical section, finalizes it, and recursively
	// launches whatever became runnable as a result — Finalize's return
	// value is itself a source of newly-admitted commutative waiters, not
	// just Register's.
	var launch func(r *depsys.TaskNode)
	launch = func(r *depsys.TaskNode) {
		defer wg.Done()
		cur := atomic.AddInt32(&running, 1)
		for {
			prev := atomic.LoadInt32(&maxRunning)
			if cur <= prev || atomic.CompareAndSwapInt32(&maxRunning, prev, cur) {
				break
			}
		}
		atomic.AddInt32(&running, -1)
		for _, next := range ds.Finalize(r) {
			wg.Add(1)
			go launch(next)
		}
	}

	const n = 32
	for i := 0; i < n; i++ {
		task := ds.NewTask(nil, 0)
		ready := ds.Register(task, func(c *depsys.RegCtx) { c.CommutativeAccess(addr, 8, false) })
		for _, r := range ready {
			wg.Add(1)
			go launch(r)
		}
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxRunning, "commutative tasks on the same address must never run concurrently")
}

func TestTaskwait_BlocksUntilChildrenFinalize(t *testing.T) {
	ds := newDS()
	parent := ds.NewTask(nil, 0)
	ds.Register(parent, noAccesses)

	child := ds.NewTask(parent, 0)
	ds.Register(child, noAccesses)

	done := make(chan struct{})
	go func() {
		ds.Taskwait(parent)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("taskwait returned before the outstanding child finalized")
	default:
	}

	ds.Finalize(child)
	<-done
}

func TestReduction_CombinesEveryParticipant(t *testing.T) {
	ds := newDS()
	addr := uintptr(0x6000)
	parent := ds.NewTask(nil, 0)
	ds.Register(parent, noAccesses)

	dstBytes := make([]byte, 8)
	init := func(slot []byte) {}
	combine := func(dst, slot []byte) {
		bytesAddInt64(dst, bytesToInt64(slot))
	}

	const n = 50
	var children []*depsys.TaskNode
	for i := 0; i < n; i++ {
		task := ds.NewTask(parent, 0)
		ready := ds.Register(task, func(c *depsys.RegCtx) {
			c.ReductionAccess(addr, 8, false, init, combine, dstBytes)
		})
		children = append(children, ready...)
	}

	for _, c := range children {
		access := c.Accesses.Find(addr)
		require.NotNil(t, access)
		require.NotNil(t, access.Reduction)
		slot := access.Reduction.GetFreeSlot(int(c.ID))
		bytesAddInt64(slot, 1)
		access.Reduction.ReleaseSlotsInUse(int(c.ID))
		ds.Finalize(c)
	}

	assert.EqualValues(t, n, bytesToInt64(dstBytes))
}

func bytesToInt64(b []byte) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b[i]) << (8 * uint(i))
	}
	return v
}

func bytesAddInt64(b []byte, delta int64) {
	v := bytesToInt64(b) + delta
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}
