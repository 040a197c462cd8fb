// Package integration exercises the tracer the way instrumented code uses
// it: spans handed across a reused worker pool, finished late, or driven
// by a single-goroutine cooperative loop.
package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/mocktrace"
)

// Executor is a fixed-size worker pool with an unbounded-enough queue.
// Tasks submitted from inside a task are queued, not run inline, so the
// same worker goroutines are reused across unrelated requests.
type Executor struct {
	tasks chan func()
	group errgroup.Group
	once  sync.Once
}

// NewExecutor starts workers goroutines.
func NewExecutor(workers int) *Executor {
	e := &Executor{tasks: make(chan func(), 1024)}
	for i := 0; i < workers; i++ {
		e.group.Go(func() error {
			for task := range e.tasks {
				task()
			}
			return nil
		})
	}
	return e
}

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Result waits for the task, or gives up after timeout.
func (f *Future[T]) Result(timeout time.Duration) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-time.After(timeout):
		var zero T
		return zero, errors.Errorf("task not done after %v", timeout)
	}
}

// Submit queues fn on e and returns its future.
func Submit[T any](e *Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	e.tasks <- func() {
		defer close(f.done)
		f.value, f.err = fn()
	}
	return f
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (e *Executor) Shutdown() {
	e.once.Do(func() { close(e.tasks) })
	_ = e.group.Wait()
}

// EventLoop runs callbacks one at a time on the goroutine that calls
// RunUntil, the way a cooperative scheduler interleaves coroutines on one
// thread. Timers only deliver callbacks; they never run them.
type EventLoop struct {
	clock     clockz.Clock
	callbacks chan func()
}

// NewEventLoop creates a loop whose timers use clock.
func NewEventLoop(clock clockz.Clock) *EventLoop {
	return &EventLoop{
		clock:     clock,
		callbacks: make(chan func(), 64),
	}
}

// AddCallback schedules fn on the loop.
func (l *EventLoop) AddCallback(fn func()) {
	l.callbacks <- fn
}

// CallLater schedules fn on the loop after d, like a coroutine sleeping.
func (l *EventLoop) CallLater(d time.Duration, fn func()) {
	fired := l.clock.After(d)
	go func() {
		<-fired
		l.callbacks <- fn
	}()
}

// RunUntil runs callbacks until stop reports true or ctx ends.
func (l *EventLoop) RunUntil(ctx context.Context, stop func() bool) error {
	for !stop() {
		select {
		case fn := <-l.callbacks:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// AssertFinishedOrder checks the operation names of spans, in order.
func AssertFinishedOrder(t *testing.T, spans []mocktrace.Span, names ...string) {
	t.Helper()

	got := make([]string, len(spans))
	for i := range spans {
		got[i] = spans[i].OperationName
	}
	require.Equal(t, names, got, "finished order")
}

// AssertChildOf checks that child is a direct child of parent.
func AssertChildOf(t *testing.T, child, parent mocktrace.Span) {
	t.Helper()

	assert.Equal(t, parent.Context.TraceID, child.Context.TraceID,
		"%s and %s should share a trace", child.OperationName, parent.OperationName)
	assert.Equal(t, parent.Context.SpanID, child.ParentID,
		"%s should be a child of %s", child.OperationName, parent.OperationName)
}

// SpanTree is a hierarchical view of finished spans.
type SpanTree struct {
	Span     mocktrace.Span
	Children []*SpanTree
}

// BuildSpanTree links a flat span list into trees, one per root.
func BuildSpanTree(spans []mocktrace.Span) []*SpanTree {
	nodes := make(map[mocktrace.SpanID]*SpanTree, len(spans))
	for i := range spans {
		nodes[spans[i].Context.SpanID] = &SpanTree{Span: spans[i]}
	}

	roots := make([]*SpanTree, 0)
	for i := range spans {
		node := nodes[spans[i].Context.SpanID]
		if parent, ok := nodes[spans[i].ParentID]; ok && spans[i].HasParent() {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

// PrintSpanTree formats trees for failure messages.
func PrintSpanTree(trees []*SpanTree) string {
	var sb strings.Builder
	for _, tree := range trees {
		printTreeNode(&sb, tree, 0)
	}
	return sb.String()
}

func printTreeNode(sb *strings.Builder, node *SpanTree, depth int) {
	fmt.Fprintf(sb, "%s%s (%.2fms)\n",
		strings.Repeat("  ", depth), node.Span.OperationName, node.Span.Duration.Seconds()*1000)
	for _, child := range node.Children {
		printTreeNode(sb, child, depth+1)
	}
}
