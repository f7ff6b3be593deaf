package scenarios_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/scenarios"
	"github.com/perf-analysis/pkg/taskapi"
)

func newTestRuntime(workerCount int) *taskapi.Runtime {
	cfg := &config.Config{}
	cfg.Executor.WorkerCount = workerCount
	cfg.Executor.TaskQueueSize = 4096
	return taskapi.New(cfg, nil)
}

func TestFibonacci(t *testing.T) {
	rt := newTestRuntime(4096)
	result, err := scenarios.Fibonacci(rt, 14)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())
	assert.EqualValues(t, 377, result)
}

func TestReductionSum(t *testing.T) {
	rt := newTestRuntime(64)
	sum, err := scenarios.ReductionSum(rt, 1000)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())
	assert.EqualValues(t, 1000, sum)
}

func TestReleaseChain(t *testing.T) {
	rt := newTestRuntime(64)
	seen, err := scenarios.ReleaseChain(rt)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())
	for i, v := range seen {
		assert.EqualValues(t, i+1, v)
	}
}

func TestCommutativeAdmission(t *testing.T) {
	rt := newTestRuntime(8)
	maxSeen, err := scenarios.CommutativeAdmission(rt, 8)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())
	assert.EqualValues(t, 1, maxSeen)
}

func TestTaskiterFor(t *testing.T) {
	rt := newTestRuntime(64)
	a, err := scenarios.TaskiterFor(rt, 50, 100)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())
	for _, v := range a {
		assert.EqualValues(t, 200, v)
	}
}

func TestDiscreteChain(t *testing.T) {
	rt := newTestRuntime(32)
	order, err := scenarios.DiscreteChain(rt)
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

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
