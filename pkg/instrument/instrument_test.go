package instrument_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/instrument"
)

func TestMemorySink_RecordsEveryEvent(t *testing.T) {
	sink := instrument.NewMemorySink()

	require.NoError(t, sink.Record(context.Background(), instrument.TraceEvent{TaskID: 1, Kind: instrument.EventSpawn}))
	require.NoError(t, sink.Record(context.Background(), instrument.TraceEvent{TaskID: 1, Kind: instrument.EventComplete}))
	require.NoError(t, sink.Record(context.Background(), instrument.TraceEvent{TaskID: 2, Kind: instrument.EventSpawn}))

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 2, sink.CountByKind(instrument.EventSpawn))
	assert.Equal(t, 1, sink.CountByKind(instrument.EventComplete))
	require.NoError(t, sink.Close())
}

func TestMulti_FansOutToEverySink(t *testing.T) {
	a := instrument.NewMemorySink()
	b := instrument.NewMemorySink()
	m := instrument.NewMulti(a, nil, b)

	ev := instrument.TraceEvent{TaskID: 7, Kind: instrument.EventSpawn}
	require.NoError(t, m.Record(context.Background(), ev))

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	require.NoError(t, m.Close())
}

func TestBuild_NoneYieldsNopSink(t *testing.T) {
	cfg := &config.Config{}
	cfg.Instrument.Sink = "none"

	sink, err := instrument.Build(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Record(context.Background(), instrument.TraceEvent{}))
	require.NoError(t, sink.Close())
}

func TestBuild_MemorySink(t *testing.T) {
	cfg := &config.Config{}
	cfg.Instrument.Sink = "memory"

	sink, err := instrument.Build(cfg, nil)
	require.NoError(t, err)

	mem, ok := sink.(*instrument.MemorySink)
	require.True(t, ok, "Build(\"memory\") must return a *MemorySink")
	require.NoError(t, mem.Record(context.Background(), instrument.TraceEvent{Kind: instrument.EventSpawn}))
	assert.Len(t, mem.Events(), 1)
}

func TestBuild_UnsupportedSinkIsError(t *testing.T) {
	cfg := &config.Config{}
	cfg.Instrument.Sink = "carrier-pigeon"

	_, err := instrument.Build(cfg, nil)
	assert.Error(t, err)
}

func TestKafkaSink_BuffersAndWarnsOnClose(t *testing.T) {
	sink := instrument.NewKafkaSink([]string{"localhost:9092"}, "traces", nil)
	require.NoError(t, sink.Record(context.Background(), instrument.TraceEvent{TaskID: 3, Kind: instrument.EventSpawn}))
	require.NoError(t, sink.Close())
}
