package instrument

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/perf-analysis/pkg/utils"
)

// Tracer is a Sink that turns task lifecycle events into OpenTelemetry
// spans, following pkg/telemetry's documented "otel.Tracer(name).Start"
// pattern rather than building a tracer provider of its own — callers
// that want OTLP export still call telemetry.Init separately, the same
// way the rest of the service does, so Tracer only needs a name to pull
// the global provider.
//
// When built with a non-nil utils.Timer it also records each task as a
// Timer phase; Build passes no timer, so the Tracer it returns records
// spans only.
type Tracer struct {
	tracer trace.Tracer
	timer  *utils.Timer

	mu    sync.Mutex
	spans map[uint64]trace.Span
}

// NewTracer builds a Tracer that names its spans under serviceName. If
// timer is non-nil, every spawn/complete pair is also recorded as a
// Timer phase named "task-<id>".
func NewTracer(serviceName string, timer *utils.Timer) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(serviceName),
		timer:  timer,
		spans:  make(map[uint64]trace.Span),
	}
}

// Record implements Sink: EventSpawn opens a span, EventComplete closes
// it (recording ev.Err as the span's status if set), and EventRelease is
// recorded as a span event on whatever span is still open for the task.
func (t *Tracer) Record(ctx context.Context, ev TraceEvent) error {
	switch ev.Kind {
	case EventSpawn:
		t.startSpan(ctx, ev)
	case EventRelease:
		t.addSpanEvent(ev)
	case EventComplete:
		t.endSpan(ev)
	}
	return nil
}

func (t *Tracer) startSpan(ctx context.Context, ev TraceEvent) {
	label := ev.Label
	if label == "" {
		label = "task"
	}

	_, span := t.tracer.Start(ctx, label, trace.WithAttributes(
		attribute.Int64("task.id", int64(ev.TaskID)),
		attribute.Int64("task.parent_id", int64(ev.ParentID)),
		attribute.Int("task.worker_id", ev.WorkerID),
	))

	t.mu.Lock()
	t.spans[ev.TaskID] = span
	t.mu.Unlock()

	if t.timer != nil {
		t.timer.Start(phaseName(ev.TaskID))
	}
}

func (t *Tracer) addSpanEvent(ev TraceEvent) {
	t.mu.Lock()
	span, ok := t.spans[ev.TaskID]
	t.mu.Unlock()
	if ok {
		span.AddEvent(string(ev.Kind), trace.WithAttributes(
			attribute.Int("task.worker_id", ev.WorkerID),
		))
	}
}

func (t *Tracer) endSpan(ev TraceEvent) {
	t.mu.Lock()
	span, ok := t.spans[ev.TaskID]
	delete(t.spans, ev.TaskID)
	t.mu.Unlock()

	if ok {
		if ev.Err != "" {
			span.SetStatus(codes.Error, ev.Err)
		}
		span.End()
	}

	if t.timer != nil {
		t.timer.StopPhase(phaseName(ev.TaskID))
	}
}

// Close ends any span left open (a task that never reached
// EventComplete, e.g. a program that exited mid-run) and prints the
// timer summary if one was configured.
func (t *Tracer) Close() error {
	t.mu.Lock()
	remaining := t.spans
	t.spans = make(map[uint64]trace.Span)
	t.mu.Unlock()

	for _, span := range remaining {
		span.End()
	}

	if t.timer != nil {
		t.timer.PrintSummary()
	}
	return nil
}

func phaseName(taskID uint64) string {
	return fmt.Sprintf("task-%d", taskID)
}
