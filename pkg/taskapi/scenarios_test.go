package taskapi_test

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/taskapi"
	"github.com/perf-analysis/pkg/taskiter"
)

func newTestRuntime(workerCount int) *taskapi.Runtime {
	cfg := &config.Config{}
	cfg.Executor.WorkerCount = workerCount
	cfg.Executor.TaskQueueSize = 4096
	return taskapi.New(cfg, nil)
}

func addrOf(p *int64) uintptr { return uintptr(unsafe.Pointer(p)) }

// TestFibonacciViaTaskwait covers the first seed scenario: a
// taskwait-structured recursive fib(14) must equal 377. Every level
// spawns both children, then blocks in Taskwait before summing, so the
// pool is sized generously above the ~1219-node recursion tree to avoid
// the documented nested-taskwait worker-exhaustion limitation rather
// than exercise it.
func TestFibonacciViaTaskwait(t *testing.T) {
	rt := newTestRuntime(4096)

	var fib func(tc *taskapi.TaskContext, n int64, out *int64) error
	fib = func(tc *taskapi.TaskContext, n int64, out *int64) error {
		if n < 2 {
			*out = n
			return nil
		}
		var a, b int64
		if _, err := tc.Spawn(0, nil, func(c *taskapi.TaskContext) error { return fib(c, n-1, &a) }); err != nil {
			return err
		}
		if _, err := tc.Spawn(0, nil, func(c *taskapi.TaskContext) error { return fib(c, n-2, &b) }); err != nil {
			return err
		}
		tc.Taskwait()
		*out = a + b
		return nil
	}

	var result int64
	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		return fib(tc, 14, &result)
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	assert.EqualValues(t, 377, result)
}

// TestReductionSum covers the second seed scenario: 1000 sibling tasks
// each add one to a private reduction slot; once every participant has
// finalized the runtime combines them into a shared accumulator and x
// must equal exactly 1000.
func TestReductionSum(t *testing.T) {
	rt := newTestRuntime(64)

	var x int64
	dst := make([]byte, 8)

	init := func(slot []byte) { binary.LittleEndian.PutUint64(slot, 0) }
	combine := func(dst, slot []byte) {
		binary.LittleEndian.PutUint64(dst, binary.LittleEndian.Uint64(dst)+binary.LittleEndian.Uint64(slot))
	}

	const n = 1000
	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		for i := 0; i < n; i++ {
			spec := taskapi.AccessSpec{
				Kind:             taskapi.Reduction,
				Addr:             addrOf(&x),
				Length:           8,
				ReductionInit:    init,
				ReductionCombine: combine,
				ReductionDst:     dst,
			}
			_, err := tc.Spawn(0, []taskapi.AccessSpec{spec}, func(c *taskapi.TaskContext) error {
				slot := c.ReductionSlot(addrOf(&x))
				binary.LittleEndian.PutUint64(slot, binary.LittleEndian.Uint64(slot)+1)
				c.ReleaseReductionSlot(addrOf(&x))
				return nil
			})
			if err != nil {
				return err
			}
		}
		tc.Taskwait()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	assert.EqualValues(t, n, binary.LittleEndian.Uint64(dst))
}

// TestReleaseAndEarlyConsumers covers the third seed scenario: a
// producer writes an 8-element vector then releases a random
// permutation of its elements one at a time, and each element's reader
// must only ever observe the fully-written value — release lets a
// reader run before the producer's whole body has finished, but never
// before that one element was written.
func TestReleaseAndEarlyConsumers(t *testing.T) {
	rt := newTestRuntime(64)

	const size = 8
	vec := make([]int64, size)
	perm := rand.Perm(size)

	seen := make([]int64, size)

	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		var accesses []taskapi.AccessSpec
		for i := range vec {
			accesses = append(accesses, taskapi.AccessSpec{Kind: taskapi.Write, Addr: addrOf(&vec[i]), Length: 8})
		}

		producerDone := make(chan struct{})
		_, err := tc.Spawn(0, accesses, func(c *taskapi.TaskContext) error {
			for _, idx := range perm {
				vec[idx] = int64(idx + 1)
				if err := c.Release(addrOf(&vec[idx]), 8, taskapi.Write, false); err != nil {
					return err
				}
			}
			close(producerDone)
			return nil
		})
		if err != nil {
			return err
		}

		for i := range vec {
			j := i
			readSpec := []taskapi.AccessSpec{{Kind: taskapi.Read, Addr: addrOf(&vec[j]), Length: 8}}
			if _, err := tc.Spawn(0, readSpec, func(c *taskapi.TaskContext) error {
				seen[j] = vec[j]
				return nil
			}); err != nil {
				return err
			}
		}

		<-producerDone
		tc.Taskwait()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	for i := range vec {
		assert.EqualValues(t, i+1, seen[i])
	}
}

// TestCommutativeAdmission covers the fourth seed scenario: numCPUs*4
// commutative tasks on the same address must never run with the
// address's critical section entered concurrently by more than one at
// a time, even though none of them declared a conflicting plain access.
func TestCommutativeAdmission(t *testing.T) {
	numCPUs := 8
	rt := newTestRuntime(numCPUs)

	var counter int64
	var maxSeen int64
	var shared int64

	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		for i := 0; i < numCPUs*4; i++ {
			spec := []taskapi.AccessSpec{{Kind: taskapi.Commutative, Addr: addrOf(&shared), Length: 8}}
			_, err := tc.Spawn(0, spec, func(c *taskapi.TaskContext) error {
				cur := atomic.AddInt64(&counter, 1)
				for {
					prev := atomic.LoadInt64(&maxSeen)
					if cur <= prev || atomic.CompareAndSwapInt64(&maxSeen, prev, cur) {
						break
					}
				}
				atomic.AddInt64(&counter, -1)
				return nil
			})
			if err != nil {
				return err
			}
		}
		tc.Taskwait()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	assert.EqualValues(t, 1, maxSeen)
}

// TestTaskiterForEquivalence covers the fifth seed scenario: a 100
// iteration taskiter-for over 50 independent inout(a[j]) lanes must
// produce the same result as an ordinary sequential loop — every a[j]
// incremented by 2 on every iteration leaves a[j] == 200.
func TestTaskiterForEquivalence(t *testing.T) {
	rt := newTestRuntime(64)

	const lanes = 50
	const iterations = 100
	a := make([]int64, lanes)

	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		g := taskiter.NewGraph(rt, tc.Task)
		for idx := 0; idx < lanes; idx++ {
			j := idx
			g.AddNode(fmt.Sprintf("lane-%d", j),
				func(iter int) []taskapi.AccessSpec {
					return []taskapi.AccessSpec{{Kind: taskapi.ReadWrite, Addr: addrOf(&a[j]), Length: 8}}
				},
				func(iter int) taskapi.Body {
					return func(c *taskapi.TaskContext) error {
						a[j] += 2
						return nil
					}
				})
		}
		if err := g.Run(0, iterations); err != nil {
			return err
		}
		tc.Taskwait()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	for j := range a {
		assert.EqualValues(t, 2*iterations, a[j])
	}
}

// TestDiscreteChainWithEarlyRelease covers the sixth seed scenario: the
// pattern R1,W2{W2}--W1 — two readers (one of them containing a nested
// writer child) followed by a sibling writer on the same address. Both
// the nested writer and the sibling writer gate on the shared read
// group draining, so both must start only after both readers have; the
// relative order between the two writers themselves is left
// unspecified, since nothing in the pattern orders them against each
// other.
func TestDiscreteChainWithEarlyRelease(t *testing.T) {
	rt := newTestRuntime(32)

	var x int64
	var order []string
	record := make(chan string, 8)

	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		readSpec := []taskapi.AccessSpec{{Kind: taskapi.Read, Addr: addrOf(&x), Length: 8}}
		writeSpec := []taskapi.AccessSpec{{Kind: taskapi.Write, Addr: addrOf(&x), Length: 8}}

		if _, err := tc.Spawn(0, readSpec, func(c *taskapi.TaskContext) error {
			record <- "r1"
			return nil
		}); err != nil {
			return err
		}

		if _, err := tc.Spawn(0, readSpec, func(c *taskapi.TaskContext) error {
			record <- "r2-outer"
			_, err := c.Spawn(0, writeSpec, func(nested *taskapi.TaskContext) error {
				x = 2
				record <- "w2-nested"
				return nil
			})
			return err
		}); err != nil {
			return err
		}

		if _, err := tc.Spawn(0, writeSpec, func(c *taskapi.TaskContext) error {
			x = 1
			record <- "w1"
			return nil
		}); err != nil {
			return err
		}

		tc.Taskwait()
		close(record)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	for ev := range record {
		order = append(order, ev)
	}

	require.Len(t, order, 4)
	readers := map[string]int{}
	writers := map[string]int{}
	for i, ev := range order {
		switch ev {
		case "r1", "r2-outer":
			readers[ev] = i
		case "w1", "w2-nested":
			writers[ev] = i
		}
	}
	require.Len(t, readers, 2)
	require.Len(t, writers, 2)
	maxReader := 0
	for _, i := range readers {
		if i > maxReader {
			maxReader = i
		}
	}
	for name, i := range writers {
		assert.Greaterf(t, i, maxReader, "%s must start after both readers", name)
	}
}
