// Package channel provides the bounded blocking FIFO used for per-session
// outbound messages.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrClosed is returned by Push and Pop once the queue has been closed.
	ErrClosed = errors.New("channel: queue closed")
	// ErrFull is returned by Push when the queue is full and the overflow
	// policy is Reject.
	ErrFull = errors.New("channel: queue full")
)

// OverflowPolicy decides what happens when Push hits capacity.
type OverflowPolicy string

const (
	// DropOldest evicts the oldest pending value to make room.
	DropOldest OverflowPolicy = "drop_oldest"
	// Reject refuses the new value.
	Reject OverflowPolicy = "reject"
)

// Valid reports whether p is a known policy.
func (p OverflowPolicy) Valid() bool {
	return p == DropOldest || p == Reject
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	Capacity int            `json:"capacity" yaml:"capacity"`
	Overflow OverflowPolicy `json:"overflow" yaml:"overflow"`
}

// DefaultQueueConfig returns sensible defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Capacity: 256,
		Overflow: DropOldest,
	}
}

// Queue is a bounded multi-producer, single-consumer FIFO. Push never blocks;
// Pop blocks until a value is available, the queue is closed, or the context
// ends.
type Queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	size   int
	policy OverflowPolicy
	closed bool

	ready chan struct{}
	done  chan struct{}

	pushed  atomic.Int64
	dropped atomic.Int64
}

// NewQueue creates a queue. Non-positive capacity and unknown policies fall
// back to the defaults.
func NewQueue[T any](config QueueConfig) *Queue[T] {
	def := DefaultQueueConfig()
	if config.Capacity <= 0 {
		config.Capacity = def.Capacity
	}
	if !config.Overflow.Valid() {
		config.Overflow = def.Overflow
	}
	return &Queue[T]{
		buf:    make([]T, config.Capacity),
		policy: config.Overflow,
		ready:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends v. With DropOldest a full queue evicts its oldest value and
// reports evicted=true; with Reject it returns ErrFull.
func (q *Queue[T]) Push(v T) (evicted bool, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrClosed
	}
	if q.size == len(q.buf) {
		if q.policy == Reject {
			q.mu.Unlock()
			q.dropped.Add(1)
			return false, ErrFull
		}
		q.take()
		q.dropped.Add(1)
		evicted = true
	}
	q.buf[(q.head+q.size)%len(q.buf)] = v
	q.size++
	q.mu.Unlock()

	q.pushed.Add(1)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted, nil
}

// Pop removes and returns the oldest value, blocking until one is available.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return zero, ErrClosed
		}
		if q.size > 0 {
			v := q.take()
			q.mu.Unlock()
			return v, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// take must be called with q.mu held and q.size > 0.
func (q *Queue[T]) take() T {
	var zero T
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v
}

// Close discards pending values and wakes any waiting consumer. It returns
// the number of discarded values; closing twice is a no-op.
func (q *Queue[T]) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	discarded := q.size
	q.closed = true
	q.buf = nil
	q.head, q.size = 0, 0
	close(q.done)
	return discarded
}

// Done is closed when the queue is closed.
func (q *Queue[T]) Done() <-chan struct{} {
	return q.done
}

// Len returns the number of pending values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the configured capacity.
func (q *Queue[T]) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0
	}
	return len(q.buf)
}

// Stats returns lifetime push and drop counters.
func (q *Queue[T]) Stats() QueueStats {
	return QueueStats{
		Pushed:  q.pushed.Load(),
		Dropped: q.dropped.Load(),
		Pending: q.Len(),
	}
}

// QueueStats is a point-in-time snapshot of queue counters.
type QueueStats struct {
	Pushed  int64 `json:"pushed"`
	Dropped int64 `json:"dropped"`
	Pending int   `json:"pending"`
}

func (s QueueStats) String() string {
	return fmt.Sprintf("pushed=%d dropped=%d pending=%d", s.Pushed, s.Dropped, s.Pending)
}
