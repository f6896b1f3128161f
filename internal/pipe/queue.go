// Package pipe provides blocking FIFO queues used to connect pipeline
// stages. A bounded queue provides backpressure by blocking producers when
// full; an unbounded queue grows as needed and never blocks producers.
// Closing a queue acts as the end-of-stream sentinel: consumers drain any
// remaining items and then observe the close.
package pipe

import (
	"errors"
	"sync"
)

var ErrInvalidCapacity = errors.New("queue capacity must be at least 1")

// Queue is a blocking FIFO queue safe for concurrent producers and
// consumers.
type Queue[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	buf      []T
	head     int
	count    int
	capacity int // 0 means unbounded
	closed   bool
}

// NewBounded returns a queue with a fixed capacity of n. Put blocks while
// the queue holds n items.
func NewBounded[T any](n int) (*Queue[T], error) {
	if n < 1 {
		return nil, ErrInvalidCapacity
	}
	q := &Queue[T]{
		buf:      make([]T, n),
		capacity: n,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q, nil
}

// MustBounded returns a bounded queue, or panics if n is invalid.
func MustBounded[T any](n int) *Queue[T] {
	q, err := NewBounded[T](n)
	if err != nil {
		panic(err)
	}
	return q
}

// NewUnbounded returns a queue without a capacity limit. Put never blocks.
func NewUnbounded[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *Queue[T]) full() bool {
	return q.capacity > 0 && q.count == q.capacity
}

// grow doubles the backing slice of an unbounded queue, restoring FIFO
// order starting at index zero. Caller must hold q.mu.
func (q *Queue[T]) grow() {
	size := len(q.buf) * 2
	if size == 0 {
		size = 8
	}
	buf := make([]T, size)
	for i := range q.count {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}

// Put appends item to the queue, blocking while a bounded queue is full.
// It reports false if the queue has been closed.
func (q *Queue[T]) Put(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.full() && !q.closed {
		q.notFull.Wait()
	}

	if q.closed {
		return false
	}

	if q.capacity == 0 && q.count == len(q.buf) {
		q.grow()
	}

	q.buf[(q.head+q.count)%len(q.buf)] = item
	q.count++

	q.notEmpty.Signal()
	return true
}

// Get removes the oldest item into t, blocking while the queue is empty and
// not closed. It reports false once the queue is closed and drained.
func (q *Queue[T]) Get(t *T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.count == 0 && q.closed {
		return false
	}

	var zero T
	*t = q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	q.notFull.Signal()
	return true
}

// Len reports the number of items currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Close marks the queue as done. Pending and future Put calls return false;
// Get drains remaining items before reporting false. Close is idempotent.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return nil
}
