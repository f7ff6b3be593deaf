// Package instrument provides optional trace sinks for the dependency
// runtime (§6 "Events" and §7's observability note): recording task
// lifecycle events to memory, a SQL database, Kafka, an HTTP endpoint or
// object storage, selected by config.InstrumentConfig.Sink.
package instrument

import (
	"context"
	"time"
)

// EventKind names the runtime transition a TraceEvent records.
type EventKind string

const (
	// EventSpawn is recorded when a task is registered with the
	// dependency system (§6 create_task/submit_task).
	EventSpawn EventKind = "spawn"

	// EventComplete is recorded when a task's body has returned, before
	// its accesses are finalized by CompleteBody.
	EventComplete EventKind = "complete"

	// EventRelease is recorded when a task gives up one of its declared
	// accesses early (§6 release_{kind}_region).
	EventRelease EventKind = "release"
)

// TraceEvent is one recorded lifecycle transition of a task.
type TraceEvent struct {
	TaskID    uint64
	ParentID  uint64
	Kind      EventKind
	Label     string
	WorkerID  int
	Timestamp time.Time
	Duration  time.Duration

	// Err holds the task body's error, if any, formatted with Error();
	// empty for events that carry no error.
	Err string
}

// Sink receives TraceEvents as a program runs. Implementations must be
// safe for concurrent use: Record is called from whichever worker
// goroutine observed the transition.
type Sink interface {
	// Record stores ev. Implementations should not block the caller for
	// longer than necessary; a slow sink risks stalling task dispatch.
	Record(ctx context.Context, ev TraceEvent) error

	// Close flushes any buffered events and releases the sink's
	// resources. Safe to call once, after the runtime has shut down.
	Close() error
}

// NopSink discards every event. It is the zero value a Runtime uses when
// no sink was configured, so call sites never need a nil check.
type NopSink struct{}

// Record implements Sink by discarding ev.
func (NopSink) Record(context.Context, TraceEvent) error { return nil }

// Close implements Sink; NopSink owns no resources.
func (NopSink) Close() error { return nil }
