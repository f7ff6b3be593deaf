package executor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/depsys"
	"github.com/perf-analysis/pkg/executor"
)

func newPool(t *testing.T, workerCount int) (*executor.Pool, *depsys.DependencySystem) {
	t.Helper()
	ds := depsys.New()
	return executor.New(ds, workerCount, 64, nil), ds
}

func noAccesses(*depsys.RegCtx) {}

func TestPool_SubmitRunsAttachedBody(t *testing.T) {
	pool, ds := newPool(t, 4)
	defer pool.Close()

	task := ds.NewTask(nil, 0)
	var ran int32
	pool.Attach(task, func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	ready := ds.Register(task, noAccesses)
	pool.SubmitAll(ready)

	require.NoError(t, pool.Wait())
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestPool_WaitPropagatesBodyError(t *testing.T) {
	pool, ds := newPool(t, 4)
	defer pool.Close()

	task := ds.NewTask(nil, 0)
	boom := assert.AnError
	pool.Attach(task, func(ctx context.Context) error { return boom })

	ready := ds.Register(task, noAccesses)
	pool.SubmitAll(ready)

	err := pool.Wait()
	assert.ErrorIs(t, err, boom)
}

func TestPool_PauseStopsDispatchUntilResume(t *testing.T) {
	pool, ds := newPool(t, 2)
	defer pool.Close()

	task := ds.NewTask(nil, 0)
	var ran int32
	pool.Attach(task, func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	pool.Pause()
	ready := ds.Register(task, noAccesses)
	pool.SubmitAll(ready)

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&ran), "a paused pool must not dispatch queued tasks")

	pool.Resume()
	require.NoError(t, pool.Wait())
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestPool_WorkerIDsAreDistinctAmongConcurrentBodies(t *testing.T) {
	const workers = 8
	pool, ds := newPool(t, workers)
	defer pool.Close()

	var mu sync.Mutex
	seen := make(map[int]int)
	release := make(chan struct{})

	// arrived is a barrier: every body records its worker id and blocks
	// until all `workers` bodies have done so, proving the ids observed
	// really were held concurrently rather than serially reused.
	arrived := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		task := ds.NewTask(nil, 0)
		pool.Attach(task, func(ctx context.Context) error {
			id, ok := executor.WorkerIDFromContext(ctx)
			require.True(t, ok)
			mu.Lock()
			seen[id]++
			mu.Unlock()
			arrived <- struct{}{}
			<-release
			return nil
		})
		pool.SubmitAll(ds.Register(task, noAccesses))
	}

	for i := 0; i < workers; i++ {
		<-arrived
	}
	close(release)
	require.NoError(t, pool.Wait())

	mu.Lock()
	defer mu.Unlock()
	for id, count := range seen {
		assert.Equalf(t, 1, count, "worker id %d was assigned to more than one concurrently-running body", id)
	}
}

func TestPool_SpawnRunsDetachedFromDependencyGraph(t *testing.T) {
	pool, _ := newPool(t, 2)
	defer pool.Close()

	var ran int32
	pool.Spawn("detached", func() error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	require.NoError(t, pool.Wait())
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestPool_ResubmitsTasksUnblockedByFinalize(t *testing.T) {
	pool, ds := newPool(t, 4)
	defer pool.Close()

	addr := uintptr(0x9000)
	parent := ds.NewTask(nil, 0)
	ds.Register(parent, noAccesses)

	var order []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	firstStarted := make(chan struct{})
	proceed := make(chan struct{})

	first := ds.NewTask(parent, 0)
	pool.Attach(first, func(ctx context.Context) error {
		close(firstStarted)
		<-proceed
		record("first")
		return nil
	})
	pool.SubmitAll(ds.Register(first, func(c *depsys.RegCtx) { c.WriteAccess(addr, 8, false) }))
	<-firstStarted

	second := ds.NewTask(parent, 0)
	pool.Attach(second, func(ctx context.Context) error { record("second"); return nil })
	ready := ds.Register(second, func(c *depsys.RegCtx) { c.WriteAccess(addr, 8, false) })
	assert.Empty(t, ready, "second write must not be runnable until first finalizes")
	pool.SubmitAll(ready)

	close(proceed)
	require.NoError(t, pool.Wait())

	require.Equal(t, []string{"first", "second"}, order)
}
