package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
depsys:
  access_map_linear_cutoff: 20
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 20, cfg.Depsys.AccessMapLinearCutoff)
	assert.False(t, cfg.Depsys.DebugAssertions)
	assert.Equal(t, 256, cfg.Executor.TaskQueueSize)
	assert.Equal(t, "none", cfg.Instrument.Sink)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
depsys:
  access_map_linear_cutoff: 64
  debug_assertions: true
executor:
  worker_count: 8
  task_queue_size: 512
instrument:
  sink: sql
  sql:
    driver: postgres
    dsn: "postgres://localhost/taskrun"
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Depsys.AccessMapLinearCutoff)
	assert.True(t, cfg.Depsys.DebugAssertions)
	assert.Equal(t, 8, cfg.Executor.WorkerCount)
	assert.Equal(t, 512, cfg.Executor.TaskQueueSize)
	assert.Equal(t, "sql", cfg.Instrument.Sink)
	assert.Equal(t, "postgres", cfg.Instrument.SQL.Driver)
}

func TestLoad_InvalidSink(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
instrument:
  sink: carrier-pigeon
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported instrument sink")
}

func TestLoad_InvalidSQLDriver(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
instrument:
  sink: sql
  sql:
    driver: clickhouse
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported sql sink driver")
}

func TestValidate_NegativeCutoff(t *testing.T) {
	cfg := &Config{
		Depsys:     DepsysConfig{AccessMapLinearCutoff: -1},
		Instrument: InstrumentConfig{Sink: "none"},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "access_map_linear_cutoff")
}

func TestValidate_NegativeWorkerCount(t *testing.T) {
	cfg := &Config{
		Executor:   ExecutorConfig{WorkerCount: -1},
		Instrument: InstrumentConfig{Sink: "none"},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker_count")
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
executor:
  worker_count: 4
instrument:
  sink: memory
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Executor.WorkerCount)
	assert.Equal(t, "memory", cfg.Instrument.Sink)
}
