package mocktrace

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// SpanHandler is called with a copy of each span after it is recorded.
type SpanHandler func(span Span)

type handlerEntry struct {
	handler SpanHandler
	id      uint64
	async   bool
}

// Tracer starts spans and records them once they finish.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Tracer struct {
	recorder     *Recorder
	ids          IDGenerator
	clock        clockz.Clock
	logger       *zap.Logger
	handlers     []handlerEntry
	panicHook    func(handlerID uint64, r interface{})
	workers      *workerPool
	handlersLock sync.RWMutex
	nextID       atomic.Uint64
	dropped      atomic.Uint64
}

// New creates a tracer. Without options it uses the real clock, random ids
// and a no-op logger.
func New(opts ...TracerOption) *Tracer {
	t := &Tracer{
		handlers: make([]handlerEntry, 0),
		clock:    clockz.RealClock,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.recorder == nil {
		t.recorder = NewRecorder(0)
	}
	if t.ids == nil {
		t.ids = NewRandomIDGenerator()
	}
	return t
}

// StartSpan creates a running span.
//
// The parent is taken only from a ChildOf option. A child reuses its
// parent's trace id and records the parent's span id; anything else starts
// a new trace.
func (t *Tracer) StartSpan(operation Key, opts ...StartOption) *ActiveSpan {
	cfg := newStartConfig(opts)

	span := &ActiveSpan{
		tracer:    t,
		name:      operation,
		startTime: cfg.startTime,
	}

	var parent SpanContext
	if cfg.parent != nil {
		parent = cfg.parent.SpanContext()
	}
	if parent.IsValid() {
		span.context = SpanContext{
			TraceID: parent.TraceID,
			SpanID:  t.ids.NewSpanID(context.Background(), parent.TraceID),
		}
		span.parentID = parent.SpanID
	} else {
		traceID, spanID := t.ids.NewIDs(context.Background())
		span.context = SpanContext{TraceID: traceID, SpanID: spanID}
	}

	if span.startTime.IsZero() {
		span.startTime = t.clock.Now()
	}
	for k, v := range cfg.tags {
		span.SetTag(k, v)
	}

	return span
}

// Do runs fn inside a span that is finished on every exit path, panics
// included. A returned error marks the span with the error tag and an
// "error" event; a panic is recorded the same way and then re-raised.
func (t *Tracer) Do(operation Key, fn func(span *ActiveSpan) error, opts ...StartOption) (err error) {
	span := t.StartSpan(operation, opts...)
	defer func() {
		if r := recover(); r != nil {
			span.SetTag(TagError, true).LogKV("event", "panic", "message", fmt.Sprint(r))
			span.Finish()
			panic(r)
		}
		span.Finish()
	}()

	if err = fn(span); err != nil {
		span.SetTag(TagError, true).LogKV("event", "error", "message", err.Error())
	}
	return err
}

// FinishedSpans returns a copy of every finished span in completion order.
func (t *Tracer) FinishedSpans() []Span {
	return t.recorder.Snapshot()
}

// WaitForFinished blocks until at least n spans have finished, then returns
// them in completion order. It gives up when ctx ends.
func (t *Tracer) WaitForFinished(ctx context.Context, n int) ([]Span, error) {
	spans, err := t.recorder.Wait(ctx, n)
	if err != nil {
		return nil, errors.Wrap(err, "mocktrace")
	}
	return spans, nil
}

// Reset drops all finished spans. Spans still running are recorded when
// they finish.
func (t *Tracer) Reset() {
	t.recorder.Reset()
}

// record appends a finished span and notifies observers.
func (t *Tracer) record(span Span) {
	t.recorder.Append(span)

	if ce := t.logger.Check(zap.DebugLevel, "span finished"); ce != nil {
		ce.Write(
			zap.String("operation", span.OperationName),
			zap.Stringer("trace_id", span.Context.TraceID),
			zap.Stringer("span_id", span.Context.SpanID),
			zap.Duration("duration", span.Duration),
		)
	}

	t.executeHandlers(span)
}

// OnSpanFinish registers a synchronous handler called after each span is
// recorded, on the finishing goroutine.
func (t *Tracer) OnSpanFinish(handler SpanHandler) uint64 {
	return t.registerHandler(handler, false)
}

// OnSpanFinishAsync registers a handler run off the finishing goroutine,
// on the worker pool when one is enabled.
func (t *Tracer) OnSpanFinishAsync(handler SpanHandler) uint64 {
	return t.registerHandler(handler, true)
}

func (t *Tracer) registerHandler(handler SpanHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := t.nextID.Add(1)

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	t.handlers = append(t.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (t *Tracer) RemoveHandler(id uint64) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	// Preserve order
	for i, h := range t.handlers {
		if h.id == id {
			copy(t.handlers[i:], t.handlers[i+1:])
			t.handlers = t.handlers[:len(t.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function called when a handler panics.
func (t *Tracer) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()
	t.panicHook = hook
}

func (t *Tracer) executeHandlers(span Span) {
	t.handlersLock.RLock()
	if len(t.handlers) == 0 {
		t.handlersLock.RUnlock()
		return
	}
	// Copied so RemoveHandler can compact the slice in place.
	handlers := make([]handlerEntry, len(t.handlers))
	copy(handlers, t.handlers)
	workers := t.workers
	t.handlersLock.RUnlock()

	for _, h := range handlers {
		// Each handler gets its own copy.
		view := span.clone()
		if !h.async {
			t.safeCall(h, view)
			continue
		}
		entry := h
		if workers != nil {
			// A pool shut down by a concurrent Close also rejects.
			if !workers.submit(func() { t.safeCall(entry, view) }) {
				t.dropped.Add(1)
				t.logger.Warn("finish notification dropped",
					zap.Uint64("handler_id", entry.id),
					zap.String("operation", view.OperationName),
				)
			}
		} else {
			go t.safeCall(entry, view)
		}
	}
}

func (t *Tracer) safeCall(entry handlerEntry, span Span) {
	defer func() {
		if r := recover(); r != nil {
			t.handlersLock.RLock()
			hook := t.panicHook
			t.handlersLock.RUnlock()

			if hook != nil {
				hook(entry.id, r)
				return
			}
			t.logger.Error("span handler panicked",
				zap.Uint64("handler_id", entry.id),
				zap.Any("panic", r),
			)
		}
	}()
	entry.handler(span)
}

// EnableWorkerPool runs async handlers on a bounded pool instead of one
// goroutine per notification. Notifications that do not fit in the queue
// are dropped and counted.
func (t *Tracer) EnableWorkerPool(workers, queueSize int) error {
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()

	if t.workers != nil {
		return errors.New("worker pool already enabled")
	}
	t.workers = newWorkerPool(workers, queueSize)
	return nil
}

// DroppedNotifications returns how many async notifications were dropped
// because the worker queue was full.
func (t *Tracer) DroppedNotifications() uint64 {
	return t.dropped.Load()
}

// Close removes all handlers, drains the worker pool and stops the id
// generator's background goroutine. Recorded spans stay readable.
func (t *Tracer) Close() {
	t.handlersLock.Lock()
	t.handlers = nil
	workers := t.workers
	t.workers = nil
	t.handlersLock.Unlock()

	if workers != nil {
		workers.shutdown()
	}

	if c, ok := t.ids.(interface{ Close() }); ok {
		c.Close()
	}
}

// workerPool runs queued tasks on a fixed set of goroutines.
// Once shut down it refuses new tasks, so every accepted task is run.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks  chan func()
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func newWorkerPool(workers, queueSize int) *workerPool {
	w := &workerPool{
		tasks: make(chan func(), queueSize),
		stop:  make(chan struct{}),
	}
	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go w.run()
	}
	return w
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			// Finish what was already accepted.
			for {
				select {
				case task := <-w.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// submit queues task without blocking. It reports false when the queue is
// full or the pool is shut down.
func (w *workerPool) submit(task func()) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}
	select {
	case w.tasks <- task:
		return true
	default:
		return false
	}
}

func (w *workerPool) shutdown() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
}
