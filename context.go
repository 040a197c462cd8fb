package mocktrace

import (
	"go.opentelemetry.io/otel/trace"
)

// TraceID identifies every span of one trace.
type TraceID = trace.TraceID

// SpanID identifies a single span.
type SpanID = trace.SpanID

// SpanContext is the immutable identity of a span.
// It is all a child needs to link to its parent.
type SpanContext struct {
	TraceID TraceID `json:"trace_id"`
	SpanID  SpanID  `json:"span_id"`
}

// Parent is anything a new span can be started as a child of.
// SpanContext, *ActiveSpan and Span all implement it.
type Parent interface {
	SpanContext() SpanContext
}

// SpanContext returns sc itself so a bare context can be used as a Parent.
func (sc SpanContext) SpanContext() SpanContext {
	return sc
}

// IsValid reports whether both ids are non-zero.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID.IsValid() && sc.SpanID.IsValid()
}

// String renders the context as "traceid:spanid" in hex.
func (sc SpanContext) String() string {
	return sc.TraceID.String() + ":" + sc.SpanID.String()
}

// OTel converts the context to an OpenTelemetry span context, for code under
// test that needs one.
func (sc SpanContext) OTel() trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    sc.TraceID,
		SpanID:     sc.SpanID,
		TraceFlags: trace.FlagsSampled,
	})
}
