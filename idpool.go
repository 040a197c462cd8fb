package mocktrace

import (
	"sync"
)

// IDPool keeps a buffer of pre-generated ids so span creation does not pay
// for crypto/rand on the hot path.
type IDPool[T any] struct {
	factory func() T
	ids     chan T
	stopCh  chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a pool holding up to capacity ids and starts the
// goroutine that keeps it topped up.
func NewIDPool[T any](capacity int, factory func() T) *IDPool[T] {
	if capacity < 1 {
		capacity = 1
	}
	pool := &IDPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// Get takes an id from the pool, or generates one directly when the pool
// has been drained. Each id is handed out at most once.
func (p *IDPool[T]) Get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		return p.factory()
	}
}

func (p *IDPool[T]) refill() {
	defer close(p.done)
	for {
		select {
		case <-p.stopCh:
			return
		case p.ids <- p.factory():
		}
	}
}

// Close stops the refill goroutine and waits for it to exit.
// Get keeps working after Close by generating ids directly.
func (p *IDPool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)
	p.mu.Unlock()

	<-p.done
}
