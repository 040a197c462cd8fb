package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/mocktrace"
	"github.com/zoobzio/mocktrace/refcount"
)

// submitSubtasks fires two children of parent whose lifetime is not tied to
// the parent in any way.
func submitSubtasks(tracer *mocktrace.Tracer, pool *Executor, parent *mocktrace.ActiveSpan) {
	task := func(name string, interval time.Duration) func() (struct{}, error) {
		return func() (struct{}, error) {
			span := tracer.StartSpan(name, mocktrace.ChildOf(parent))
			defer span.Finish()
			time.Sleep(interval)
			return struct{}{}, nil
		}
	}

	Submit(pool, task("task1", 100*time.Millisecond))
	Submit(pool, task("task2", 300*time.Millisecond))
}

func assertLateFinish(t *testing.T, spans []mocktrace.Span) {
	t.Helper()

	AssertFinishedOrder(t, spans, "task1", "task2", "parent")

	parent := spans[2]
	for _, child := range spans[:2] {
		AssertChildOf(t, child, parent)
		assert.False(t, child.FinishTime.After(parent.FinishTime),
			"%s finished after its parent", child.OperationName)
	}
}

func TestLateFinishWorkerPool(t *testing.T) {
	tracer := mocktrace.New()
	defer tracer.Close()
	pool := NewExecutor(3)

	parent := tracer.StartSpan("parent")
	submitSubtasks(tracer, pool, parent)

	// Wait for the pool to be done, then late-finish the parent.
	pool.Shutdown()
	parent.Finish()

	assertLateFinish(t, tracer.FinishedSpans())
}

func TestLateFinishEventLoop(t *testing.T) {
	tracer := mocktrace.New()
	defer tracer.Close()
	loop := NewEventLoop(clockz.RealClock)

	parent := tracer.StartSpan("parent")

	// Each task starts its span, "sleeps" by yielding to the loop, and
	// finishes the span when resumed.
	task := func(name string, interval time.Duration) func() {
		return func() {
			span := tracer.StartSpan(name, mocktrace.ChildOf(parent))
			loop.CallLater(interval, span.Finish)
		}
	}
	loop.AddCallback(task("task1", 100*time.Millisecond))
	loop.AddCallback(task("task2", 300*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.RunUntil(ctx, func() bool {
		return len(tracer.FinishedSpans()) >= 2
	}))

	parent.Finish()

	assertLateFinish(t, tracer.FinishedSpans())
}

// TestLateFinishWaitForFinished waits on the tracer itself instead of on
// the pool.
func TestLateFinishWaitForFinished(t *testing.T) {
	tracer := mocktrace.New()
	defer tracer.Close()
	pool := NewExecutor(3)
	defer pool.Shutdown()

	parent := tracer.StartSpan("parent")
	submitSubtasks(tracer, pool, parent)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := tracer.WaitForFinished(ctx, 2)
	require.NoError(t, err)

	parent.Finish()

	assertLateFinish(t, tracer.FinishedSpans())
}

// TestLastChildFinishesParent lets whichever child completes last finish
// the shared parent, tracked with a reference counter.
func TestLastChildFinishesParent(t *testing.T) {
	tracer := mocktrace.New()
	defer tracer.Close()
	pool := NewExecutor(3)
	defer pool.Shutdown()

	const children = 5
	parent := tracer.StartSpan("parent")
	outstanding := refcount.New(children)

	for i := 0; i < children; i++ {
		delay := time.Duration(children-i) * 10 * time.Millisecond
		Submit(pool, func() (struct{}, error) {
			span := tracer.StartSpan("child", mocktrace.ChildOf(parent))
			time.Sleep(delay)
			span.Finish()

			if outstanding.Decrement() == 0 {
				parent.Finish()
			}
			return struct{}{}, nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	spans, err := tracer.WaitForFinished(ctx, children+1)
	require.NoError(t, err)

	require.Len(t, spans, children+1)
	last := spans[children]
	assert.Equal(t, "parent", last.OperationName)
	assert.Len(t, mocktrace.ChildrenOf(spans, last), children, PrintSpanTree(BuildSpanTree(spans)))
	assert.Equal(t, int64(0), outstanding.Load())
}
