package instrument

import (
	"fmt"

	"github.com/perf-analysis/pkg/config"
	apperrors "github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/utils"
)

// Build constructs the Sink named by cfg.Instrument.Sink, optionally
// wrapped with a Tracer when cfg.Instrument.OTel.Enabled — the same
// config-driven selection repository.NewGormDB uses for its dialector,
// generalized to pick among sink backends instead of SQL drivers.
func Build(cfg *config.Config, logger utils.Logger) (Sink, error) {
	var base Sink

	switch cfg.Instrument.Sink {
	case "", "none":
		base = NopSink{}
	case "memory":
		base = NewMemorySink()
	case "sql":
		sc := cfg.Instrument.SQL
		sink, err := NewSQLSink(sc.Driver, sc.DSN, sc.MaxConns)
		if err != nil {
			return nil, err
		}
		base = sink
	case "kafka":
		kc := cfg.Instrument.Kafka
		base = NewKafkaSink(kc.Brokers, kc.Topic, logger)
	case "http":
		base = NewHTTPSink(cfg.Instrument.HTTP.Endpoint)
	case "archive":
		ac := cfg.Instrument.Archive
		sink, err := NewObjectStorageSink(ArchiveConfig{
			Bucket:    ac.Bucket,
			Region:    ac.Region,
			SecretID:  ac.SecretID,
			SecretKey: ac.SecretKey,
			Domain:    ac.Domain,
			Scheme:    ac.Scheme,
		})
		if err != nil {
			return nil, err
		}
		base = sink
	default:
		return nil, apperrors.New(apperrors.CodeConfigError, fmt.Sprintf("unsupported instrument sink: %s", cfg.Instrument.Sink))
	}

	if !cfg.Instrument.OTel.Enabled {
		return base, nil
	}

	name := cfg.Instrument.OTel.ServiceName
	if name == "" {
		name = "taskrun"
	}
	tracer := NewTracer(name, nil)
	return NewMulti(base, tracer), nil
}
