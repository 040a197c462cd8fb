package mocktrace

import (
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithClock sets the clock used for start, finish and event timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) TracerOption {
	return func(t *Tracer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithIDGenerator replaces the default random id generator.
func WithIDGenerator(gen IDGenerator) TracerOption {
	return func(t *Tracer) {
		if gen != nil {
			t.ids = gen
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) TracerOption {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRecorderCapacity presizes the finished-span list.
func WithRecorderCapacity(capacity int) TracerOption {
	return func(t *Tracer) {
		t.recorder = NewRecorder(capacity)
	}
}

// StartOption configures a single StartSpan call.
type StartOption func(*startConfig)

type startConfig struct {
	parent    Parent
	startTime time.Time
	tags      map[Tag]any
}

// ChildOf makes the new span a child of parent. A nil parent, or one with an
// invalid context, leaves the new span a root.
func ChildOf(parent Parent) StartOption {
	return func(c *startConfig) {
		c.parent = parent
	}
}

// WithStartTime overrides the start timestamp.
func WithStartTime(t time.Time) StartOption {
	return func(c *startConfig) {
		c.startTime = t
	}
}

// WithTag sets a tag on the span as it starts.
func WithTag(key Tag, value any) StartOption {
	return func(c *startConfig) {
		if c.tags == nil {
			c.tags = make(map[Tag]any)
		}
		c.tags[key] = value
	}
}

func newStartConfig(opts []StartOption) startConfig {
	var cfg startConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
