// Package config provides configuration management for the dependency
// runtime and its optional instrumentation backends.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the runtime.
type Config struct {
	Depsys     DepsysConfig     `mapstructure:"depsys"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Log        LogConfig        `mapstructure:"log"`
}

// DepsysConfig holds dependency-system tunables (§4.1, §7.4).
type DepsysConfig struct {
	// AccessMapLinearCutoff is the number of entries below which a task's
	// AccessMap is a linearly-scanned array pair; above it, a hash map.
	AccessMapLinearCutoff int `mapstructure:"access_map_linear_cutoff"`

	// DebugAssertions enables invariant checks that are only meaningful in
	// debug builds (double-delete, mailbox reentrancy) per §7.4.
	DebugAssertions bool `mapstructure:"debug_assertions"`
}

// ExecutorConfig holds the external executor's configuration.
type ExecutorConfig struct {
	// WorkerCount is the fixed capacity of the worker pool. 0 means
	// runtime.NumCPU().
	WorkerCount int `mapstructure:"worker_count"`

	// TaskQueueSize is the buffer size for tasks waiting to be dispatched.
	TaskQueueSize int `mapstructure:"task_queue_size"`
}

// InstrumentConfig holds optional instrumentation sink configuration.
type InstrumentConfig struct {
	// Sink selects the trace sink: "none", "memory", "sql", "kafka",
	// "http", "archive".
	Sink string `mapstructure:"sink"`

	SQL     SQLSinkConfig     `mapstructure:"sql"`
	Kafka   KafkaSinkConfig   `mapstructure:"kafka"`
	HTTP    HTTPSinkConfig    `mapstructure:"http"`
	Archive ArchiveSinkConfig `mapstructure:"archive"`
	OTel    OTelConfig        `mapstructure:"otel"`
}

// SQLSinkConfig configures instrument.SQLSink.
type SQLSinkConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, postgres, sqlite
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// KafkaSinkConfig configures instrument.KafkaSink.
type KafkaSinkConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// HTTPSinkConfig configures instrument.HTTPSink.
type HTTPSinkConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// ArchiveSinkConfig configures instrument.ObjectStorageSink.
type ArchiveSinkConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
}

// OTelConfig configures instrument.Tracer's OTLP export.
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	Endpoint      string  `mapstructure:"endpoint"`
	Protocol      string  `mapstructure:"protocol"` // grpc or http
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/taskrun")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw content (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("depsys.access_map_linear_cutoff", 20)
	v.SetDefault("depsys.debug_assertions", false)

	v.SetDefault("executor.worker_count", 0)
	v.SetDefault("executor.task_queue_size", 256)

	v.SetDefault("instrument.sink", "none")
	v.SetDefault("instrument.sql.driver", "sqlite")
	v.SetDefault("instrument.sql.max_conns", 10)
	v.SetDefault("instrument.otel.service_name", "taskrun")
	v.SetDefault("instrument.otel.protocol", "grpc")
	v.SetDefault("instrument.otel.sampling_ratio", 1.0)
	v.SetDefault("instrument.archive.scheme", "https")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Depsys.AccessMapLinearCutoff < 0 {
		return fmt.Errorf("depsys.access_map_linear_cutoff must be >= 0")
	}
	if c.Executor.WorkerCount < 0 {
		return fmt.Errorf("executor.worker_count must be >= 0")
	}

	switch c.Instrument.Sink {
	case "none", "memory", "sql", "kafka", "http", "archive":
	default:
		return fmt.Errorf("unsupported instrument sink: %s", c.Instrument.Sink)
	}

	if c.Instrument.Sink == "sql" {
		switch c.Instrument.SQL.Driver {
		case "mysql", "postgres", "sqlite":
		default:
			return fmt.Errorf("unsupported sql sink driver: %s", c.Instrument.SQL.Driver)
		}
	}

	return nil
}
