package instrument

import "context"

// Multi fans a single Record/Close out to every wrapped Sink, used when
// a run wants both a queryable backend (SQL/Kafka/HTTP/archive) and an
// OTel Tracer active at once.
type Multi struct {
	sinks []Sink
}

// NewMulti wraps sinks, skipping any nil entries so callers can build the
// list conditionally without filtering it themselves.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Record forwards ev to every wrapped sink, returning the first error
// encountered after still attempting the rest.
func (m *Multi) Record(ctx context.Context, ev TraceEvent) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every wrapped sink, returning the first error encountered
// after still attempting the rest.
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
