// Package refcount provides a thread-safe reference counter for callers
// coordinating work across goroutines, such as "how many subtasks are still
// outstanding". It knows nothing about spans or tracers.
package refcount

import "sync/atomic"

// Counter is an atomic counter. The zero value starts at 0.
type Counter struct {
	n atomic.Int64
}

// New returns a counter starting at initial.
func New(initial int64) *Counter {
	c := &Counter{}
	c.n.Store(initial)
	return c
}

// Increment adds one and returns the new count.
func (c *Counter) Increment() int64 {
	return c.n.Add(1)
}

// Decrement subtracts one and returns the new count.
func (c *Counter) Decrement() int64 {
	return c.n.Add(-1)
}

// Load returns the current count.
func (c *Counter) Load() int64 {
	return c.n.Load()
}
