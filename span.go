package mocktrace

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Event is a timestamped log entry attached to a span.
type Event struct {
	Timestamp time.Time                  `json:"timestamp"`
	Fields    map[string]attribute.Value `json:"fields,omitempty"`
	Name      string                     `json:"name,omitempty"`
}

// Span is the frozen record of a finished span, as returned by
// Tracer.FinishedSpans. Records are copies: changing one never affects the
// tracer or other snapshots.
//
//nolint:govet // Field order follows JSON output order
type Span struct {
	Tags          map[Tag]any             `json:"tags,omitempty"`
	Events        []Event                 `json:"events,omitempty"`
	StartTime     time.Time               `json:"start_time"`
	FinishTime    time.Time               `json:"finish_time"`
	Duration      time.Duration           `json:"duration"`
	Context       SpanContext             `json:"context"`
	ParentID      SpanID                  `json:"parent_id,omitempty"`
	OperationName string                  `json:"operation_name"`
}

// SpanContext returns the span's identity, so a finished span can parent
// a new one.
func (s Span) SpanContext() SpanContext {
	return s.Context
}

// HasParent reports whether the span was started as a child.
func (s Span) HasParent() bool {
	return s.ParentID.IsValid()
}

// Tag returns a tag exactly as it was set.
func (s Span) Tag(key Tag) (any, bool) {
	v, ok := s.Tags[key]
	return v, ok
}

// Attributes returns the tags as OpenTelemetry attributes, for handing a
// finished span to OTel-based assertions or exporters. Unsigned values above
// MaxInt64 and non-scalar values become strings.
func (s Span) Attributes() []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(s.Tags))
	for k, v := range s.Tags {
		out = append(out, attribute.KeyValue{Key: attribute.Key(k), Value: toAttribute(v)})
	}
	return out
}

func (s Span) clone() Span {
	out := s
	out.Tags = copyTags(s.Tags)
	if s.Events != nil {
		out.Events = make([]Event, len(s.Events))
		for i, e := range s.Events {
			out.Events[i] = e
			if e.Fields != nil {
				out.Events[i].Fields = make(map[string]attribute.Value, len(e.Fields))
				for k, v := range e.Fields {
					out.Events[i].Fields[k] = v
				}
			}
		}
	}
	return out
}

// ActiveSpan is a span that may still be running.
// All methods are safe for concurrent use; each span has its own lock so
// work on one span never waits on another.
type ActiveSpan struct {
	tracer     *Tracer
	tags       map[Tag]any
	events     []Event
	startTime  time.Time
	finishTime time.Time
	name       string
	context    SpanContext
	parentID   SpanID
	mu         sync.Mutex
	finished   bool
}

// SetTag sets a tag and returns the span for chaining.
// The value is stored as given and read back unchanged.
// Setting a key twice keeps the last value. No-op once finished.
func (a *ActiveSpan) SetTag(key Tag, value any) *ActiveSpan {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished {
		return a
	}
	if a.tags == nil {
		a.tags = make(map[Tag]any)
	}
	a.tags[key] = value
	return a
}

// Tag returns a tag exactly as it was set.
func (a *ActiveSpan) Tag(key Tag) (any, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	v, ok := a.tags[key]
	return v, ok
}

// Tags returns a copy of all tags.
func (a *ActiveSpan) Tags() map[Tag]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[Tag]any, len(a.tags))
	for k, v := range a.tags {
		out[k] = v
	}
	return out
}

// LogKV records an event made of alternating keys and values.
// An "event" key, if present, also becomes the event name.
// No-op once finished.
func (a *ActiveSpan) LogKV(keyValues ...any) *ActiveSpan {
	now := a.tracer.clock.Now()

	fields := make(map[string]attribute.Value, len(keyValues)/2)
	var name string
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprint(keyValues[i])
		}
		fields[key] = toAttribute(keyValues[i+1])
		if key == "event" {
			name = fields[key].Emit()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return a
	}
	a.events = append(a.events, Event{Timestamp: now, Name: name, Fields: fields})
	return a
}

// LogEvent records a named event with no fields.
func (a *ActiveSpan) LogEvent(name string) *ActiveSpan {
	return a.LogKV("event", name)
}

// OperationName returns the span's operation name.
func (a *ActiveSpan) OperationName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

// SetOperationName renames the span. No-op once finished.
func (a *ActiveSpan) SetOperationName(name Key) *ActiveSpan {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finished {
		a.name = name
	}
	return a
}

// SpanContext returns the span's immutable identity.
// A nil span has an invalid context, so ChildOf(nil span) starts a root.
func (a *ActiveSpan) SpanContext() SpanContext {
	if a == nil {
		return SpanContext{}
	}
	// Set once at creation, read without the lock.
	return a.context
}

// ParentID returns the parent's span id, or the zero id for a root span.
func (a *ActiveSpan) ParentID() SpanID {
	return a.parentID
}

// HasParent reports whether the span was started as a child.
func (a *ActiveSpan) HasParent() bool {
	return a.parentID.IsValid()
}

// StartTime returns when the span started.
func (a *ActiveSpan) StartTime() time.Time {
	return a.startTime
}

// FinishTime returns when the span finished, and false while it is running.
func (a *ActiveSpan) FinishTime() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finishTime, a.finished
}

// IsFinished reports whether Finish has been called.
func (a *ActiveSpan) IsFinished() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finished
}

// Finish completes the span and records it with its tracer.
// Safe to call multiple times - subsequent calls are no-ops and only log
// a warning.
func (a *ActiveSpan) Finish() {
	_ = a.finish(a.tracer.clock.Now())
}

// FinishAt completes the span with an explicit finish time.
// A time before the start time is clamped to the start time.
func (a *ActiveSpan) FinishAt(t time.Time) {
	_ = a.finish(t)
}

// FinishChecked behaves like Finish but returns ErrAlreadyFinished when the
// span was finished before.
func (a *ActiveSpan) FinishChecked() error {
	return a.finish(a.tracer.clock.Now())
}

func (a *ActiveSpan) finish(at time.Time) error {
	a.mu.Lock()
	if a.finished {
		name := a.name
		a.mu.Unlock()

		a.tracer.logger.Warn("span finished twice",
			zap.String("operation", name),
			zap.Stringer("span_id", a.context.SpanID),
		)
		return errors.Wrapf(ErrAlreadyFinished, "operation %q span %s", name, a.context.SpanID)
	}

	if at.Before(a.startTime) {
		at = a.startTime
	}
	a.finished = true
	a.finishTime = at
	record := a.recordLocked()
	a.mu.Unlock()

	a.tracer.record(record)
	return nil
}

// recordLocked builds the frozen record. Callers hold a.mu.
func (a *ActiveSpan) recordLocked() Span {
	s := Span{
		OperationName: a.name,
		Context:       a.context,
		ParentID:      a.parentID,
		Tags:          a.tags,
		Events:        a.events,
		StartTime:     a.startTime,
		FinishTime:    a.finishTime,
		Duration:      a.finishTime.Sub(a.startTime),
	}
	return s.clone()
}
