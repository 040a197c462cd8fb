package mocktrace

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Recorder is the append-only list of finished spans, in completion order.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Recorder struct {
	spans   []Span
	seen    map[SpanID]struct{}
	changed chan struct{}
	mu      sync.Mutex
}

// NewRecorder creates an empty recorder with room for capacity spans.
func NewRecorder(capacity int) *Recorder {
	if capacity < 8 {
		capacity = 8
	}
	return &Recorder{
		spans:   make([]Span, 0, capacity),
		seen:    make(map[SpanID]struct{}, capacity),
		changed: make(chan struct{}),
	}
}

// Append records a finished span. Order of Append calls is the order of
// the recorded list.
//
// Appending the same span id twice panics with ErrDuplicateSpan: spans
// finish once, so a duplicate means the tracer itself is broken.
func (r *Recorder) Append(span Span) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.seen[span.Context.SpanID]; dup {
		panic(errors.Wrapf(ErrDuplicateSpan, "operation %q span %s", span.OperationName, span.Context.SpanID))
	}
	r.seen[span.Context.SpanID] = struct{}{}

	r.growLocked()
	r.spans = append(r.spans, span)

	// Wake every waiter and arm a fresh channel for the next append.
	close(r.changed)
	r.changed = make(chan struct{})
}

// growLocked makes room for one more span.
func (r *Recorder) growLocked() {
	if len(r.spans) < cap(r.spans) {
		return
	}
	currentCap := cap(r.spans)
	var newCap int
	if currentCap < 1024 {
		newCap = currentCap * 2
	} else {
		newCap = currentCap + currentCap/2
	}
	if newCap < 32 {
		newCap = 32
	}
	grown := make([]Span, len(r.spans), newCap)
	copy(grown, r.spans)
	r.spans = grown
}

// Snapshot returns a deep copy of every recorded span.
// The returned slice is safe to modify without affecting the recorder.
func (r *Recorder) Snapshot() []Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() []Span {
	result := make([]Span, len(r.spans))
	for i := range r.spans {
		result[i] = r.spans[i].clone()
	}
	return result
}

// Count returns the number of recorded spans.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spans)
}

// Wait blocks until at least n spans are recorded and returns a snapshot,
// or returns the context error if ctx ends first.
func (r *Recorder) Wait(ctx context.Context, n int) ([]Span, error) {
	for {
		r.mu.Lock()
		if len(r.spans) >= n {
			spans := r.snapshotLocked()
			r.mu.Unlock()
			return spans, nil
		}
		changed := r.changed
		have := len(r.spans)
		r.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for %d finished spans, have %d", n, have)
		}
	}
}

// Reset drops all recorded spans.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.spans = r.spans[:0]
	r.seen = make(map[SpanID]struct{}, cap(r.spans))
}
