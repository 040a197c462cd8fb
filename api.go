// Package mocktrace provides a deterministic, in-memory tracer for testing
// tracing instrumentation.
//
// mocktrace records spans in process memory so tests can assert how
// instrumented code creates spans, links parents to children across
// goroutines, and finishes spans with accurate timing. Nothing is exported
// over the network.
//
// Core Components:
//   - Tracer: Starts spans and records them, in completion order, once finished.
//   - ActiveSpan: Thread-safe handle for a span that is still running.
//   - Span: Frozen record of a finished span.
//   - SpanContext: Immutable trace/span identity used to link children.
//
// Basic Usage:
//
//	tracer := mocktrace.New()
//	defer tracer.Close()
//
//	parent := tracer.StartSpan("parent")
//	child := tracer.StartSpan("child", mocktrace.ChildOf(parent))
//	child.SetTag("user.id", "123").Finish()
//	parent.Finish()
//
//	spans := tracer.FinishedSpans() // [child, parent]
//
// Explicit Parents:
//
// There is no implicit "current span". A span is a child only when its
// parent is passed with ChildOf, either as an *ActiveSpan, a finished Span
// or a bare SpanContext. Instrumentation shared by a reused goroutine pool
// therefore never adopts a parent that belongs to another request.
//
// Thread Safety:
//
// Tracer is safe for concurrent use by multiple goroutines. Each ActiveSpan
// guards its own state, so spans never contend with each other; the only
// shared hotspot is the append to the finished-span list.
//
// Double Finish:
//
// Finish is idempotent: a second call records nothing and logs a warning.
// FinishChecked reports the same condition as ErrAlreadyFinished.
//
// Resource Cleanup:
//
// Call tracer.Close() to stop background goroutines (ID pool refill and
// async finish observers). Call tracer.Reset() to drop recorded spans.
package mocktrace

// Key represents a span operation name.
type Key = string

// Tag represents a span tag key.
type Tag = string
