package krunloop

import (
	"context"
	"sync"
)

// UnboundedQueue is a FIFO of events. Enqueue never blocks; Dequeue blocks until an item
// arrives, the queue is closed, or ctx is done.
type UnboundedQueue[T CriticalResource] struct {
	mu     sync.Mutex
	buffer []IEvent[T]
	closed bool
	notify chan struct{} // cap 1: "something changed"
}

func NewUnboundedQueue[T CriticalResource]() *UnboundedQueue[T] {
	return &UnboundedQueue[T]{
		notify: make(chan struct{}, 1),
	}
}

// Enqueue returns false if the queue is already closed (the item is dropped).
func (q *UnboundedQueue[T]) Enqueue(item IEvent[T]) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.buffer = append(q.buffer, item)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *UnboundedQueue[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Dequeue returns ok=false once the queue is closed and drained, or when ctx is done.
func (q *UnboundedQueue[T]) Dequeue(ctx context.Context) (IEvent[T], bool) {
	for {
		q.mu.Lock()
		if len(q.buffer) > 0 {
			item := q.buffer[0]
			q.buffer[0] = nil
			q.buffer = q.buffer[1:]
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *UnboundedQueue[T]) GetSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buffer)
}

// Close stops accepting new items; items already queued can still be dequeued.
func (q *UnboundedQueue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}
