package mocktrace

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// IDGenerator mints trace and span ids. It is the OpenTelemetry SDK
// contract, so any OTel-compatible generator can be plugged into a Tracer.
// Implementations must be safe for concurrent use and must not repeat a
// span id for the lifetime of the generator.
type IDGenerator = sdktrace.IDGenerator

var (
	_ IDGenerator = (*RandomIDGenerator)(nil)
	_ IDGenerator = (*SequentialIDGenerator)(nil)
)

// RandomIDGenerator produces random ids: UUIDv4 bytes for trace ids and
// 64 crypto-random bits for span ids. The zero value and
// NewRandomIDGenerator start no goroutines; NewPooledIDGenerator serves span
// ids from an IDPool and must be closed.
type RandomIDGenerator struct {
	spanIDs  *IDPool[SpanID]
	fallback atomic.Uint64
}

// NewRandomIDGenerator returns the default generator.
func NewRandomIDGenerator() *RandomIDGenerator {
	return &RandomIDGenerator{}
}

// NewPooledIDGenerator returns a random generator that keeps capacity span
// ids pre-generated by a background goroutine. A capacity below 1 is sized
// per CPU. Call Close, or Tracer.Close, to stop the goroutine.
func NewPooledIDGenerator(capacity int) *RandomIDGenerator {
	if capacity < 1 {
		// Sized per CPU to keep channel contention low.
		capacity = runtime.NumCPU() * 100
	}
	g := &RandomIDGenerator{}
	g.spanIDs = NewIDPool(capacity, g.randomSpanID)
	return g
}

// NewIDs returns a fresh trace id and span id for a root span.
func (g *RandomIDGenerator) NewIDs(ctx context.Context) (TraceID, SpanID) {
	return g.randomTraceID(), g.NewSpanID(ctx, TraceID{})
}

// NewSpanID returns a fresh span id. The trace id is not used.
func (g *RandomIDGenerator) NewSpanID(_ context.Context, _ TraceID) SpanID {
	if g.spanIDs != nil {
		return g.spanIDs.Get()
	}
	return g.randomSpanID()
}

// Close stops the span id pool, if any. The generator stays usable.
func (g *RandomIDGenerator) Close() {
	if g.spanIDs != nil {
		g.spanIDs.Close()
	}
}

func (g *RandomIDGenerator) randomTraceID() TraceID {
	for {
		u, err := uuid.NewRandom()
		if err != nil {
			return g.fallbackTraceID()
		}
		if tid := TraceID(u); tid.IsValid() {
			return tid
		}
	}
}

func (g *RandomIDGenerator) randomSpanID() SpanID {
	var sid SpanID
	for !sid.IsValid() {
		if _, err := rand.Read(sid[:]); err != nil {
			return g.fallbackSpanID()
		}
	}
	return sid
}

// The fallbacks only run when crypto/rand fails; they are counter based so
// they still never repeat.
func (g *RandomIDGenerator) fallbackTraceID() TraceID {
	var tid TraceID
	tid[0] = 0xff
	binary.BigEndian.PutUint64(tid[8:], g.fallback.Add(1))
	return tid
}

func (g *RandomIDGenerator) fallbackSpanID() SpanID {
	var sid SpanID
	n := g.fallback.Add(1)
	binary.BigEndian.PutUint64(sid[:], n|1<<63)
	return sid
}

// SequentialIDGenerator hands out ids from a single atomic counter.
// Ids are strictly increasing in allocation order, which makes test
// output reproducible.
type SequentialIDGenerator struct {
	next atomic.Uint64
}

// NewSequentialIDGenerator returns a generator whose first id is 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

// NewIDs returns a trace id and span id taken from consecutive counter values.
func (g *SequentialIDGenerator) NewIDs(ctx context.Context) (TraceID, SpanID) {
	var tid TraceID
	binary.BigEndian.PutUint64(tid[8:], g.next.Add(1))
	return tid, g.NewSpanID(ctx, tid)
}

// NewSpanID returns the next counter value as a span id.
func (g *SequentialIDGenerator) NewSpanID(_ context.Context, _ TraceID) SpanID {
	var sid SpanID
	binary.BigEndian.PutUint64(sid[:], g.next.Add(1))
	return sid
}
