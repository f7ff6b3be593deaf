// Package scenarios runs the seed workloads used to exercise the
// dependency runtime end to end, shared between tests and cmd/taskrun.
package scenarios

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync/atomic"
	"unsafe"

	"github.com/perf-analysis/pkg/taskapi"
	"github.com/perf-analysis/pkg/taskiter"
)

func addrOf(p *int64) uintptr { return uintptr(unsafe.Pointer(p)) }

// Fibonacci runs fib(n) as a taskwait-structured recursive task tree and
// returns the result.
func Fibonacci(rt *taskapi.Runtime, n int64) (int64, error) {
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
		return fib(tc, n, &result)
	})
	return result, err
}

// ReductionSum spawns n sibling tasks that each add one to a private
// reduction slot over a shared int64 accumulator and returns the total.
func ReductionSum(rt *taskapi.Runtime, n int) (uint64, error) {
	var x int64
	dst := make([]byte, 8)

	init := func(slot []byte) { binary.LittleEndian.PutUint64(slot, 0) }
	combine := func(dst, slot []byte) {
		binary.LittleEndian.PutUint64(dst, binary.LittleEndian.Uint64(dst)+binary.LittleEndian.Uint64(slot))
	}

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
	return binary.LittleEndian.Uint64(dst), err
}

// ReleaseChain writes an 8-element vector one element at a time, releasing
// each element as soon as it is written, and returns what each reader
// observed.
func ReleaseChain(rt *taskapi.Runtime) ([]int64, error) {
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
	return seen, err
}

// CommutativeAdmission runs numCPUs*4 commutative tasks on one shared
// address and returns the highest concurrency level observed inside the
// critical section (must be 1).
func CommutativeAdmission(rt *taskapi.Runtime, numCPUs int) (int64, error) {
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
	return maxSeen, err
}

// TaskiterFor runs a taskiter-for over lanes independent inout(a[j]) lanes
// for the given number of iterations, incrementing each lane by 2 every
// iteration, and returns the final lane values.
func TaskiterFor(rt *taskapi.Runtime, lanes, iterations int) ([]int64, error) {
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
	return a, err
}

// DiscreteChain runs the pattern R1,W2{W2}--W1 (two readers, one with a
// nested writer child, followed by a sibling writer on the same address)
// and returns the order events were recorded in.
func DiscreteChain(rt *taskapi.Runtime) ([]string, error) {
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
	if err != nil {
		return nil, err
	}
	for ev := range record {
		order = append(order, ev)
	}
	return order, nil
}
