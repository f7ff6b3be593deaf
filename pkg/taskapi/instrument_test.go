package taskapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/instrument"
	"github.com/perf-analysis/pkg/taskapi"
)

func TestRuntime_RecordsSpawnAndCompleteEvents(t *testing.T) {
	cfg := &config.Config{}
	cfg.Executor.WorkerCount = 4
	cfg.Executor.TaskQueueSize = 64

	sink := instrument.NewMemorySink()
	rt := taskapi.New(cfg, nil, taskapi.WithSink(sink))

	_, err := rt.Spawn(nil, taskapi.Wait, nil, func(tc *taskapi.TaskContext) error {
		_, err := tc.Spawn(0, nil, func(*taskapi.TaskContext) error { return nil })
		return err
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	assert.GreaterOrEqual(t, sink.CountByKind(instrument.EventSpawn), 2)
	assert.GreaterOrEqual(t, sink.CountByKind(instrument.EventComplete), 2)
}

func TestRuntime_RecordsReleaseEvent(t *testing.T) {
	cfg := &config.Config{}
	cfg.Executor.WorkerCount = 2
	cfg.Executor.TaskQueueSize = 16

	sink := instrument.NewMemorySink()
	rt := taskapi.New(cfg, nil, taskapi.WithSink(sink))

	addr := addrOf(new(int64))
	spec := []taskapi.AccessSpec{{Kind: taskapi.Write, Addr: addr, Length: 8}}

	_, err := rt.Spawn(nil, taskapi.Wait, spec, func(tc *taskapi.TaskContext) error {
		return tc.Release(addr, 8, taskapi.Write, false)
	})
	require.NoError(t, err)
	require.NoError(t, rt.Shutdown())

	assert.Equal(t, 1, sink.CountByKind(instrument.EventRelease))
}
