// Package queue provides the bounded in-memory buffer between the
// session engine and the leaderboard workers.
//
// Enqueue never blocks: when the buffer is full the delta is rejected
// and the caller re-offers it on the next heartbeat tick, so
// backpressure surfaces at the producer instead of stalling sessions.
package queue

import (
	"context"
	"sync"

	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/pkg/metrics"
)

const defaultCapacity = 100000

// Delta is the payload type flowing through the queue.
type Delta = model.HeartbeatDelta

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds a delta. Returns false when the queue is full or
	// closed and the delta was not accepted.
	Enqueue(ctx context.Context, d Delta) bool

	// Dequeue returns a channel that receives deltas as they become
	// available. The channel closes when the queue is closed and
	// drained.
	Dequeue(ctx context.Context) <-chan Delta

	// Len returns the current number of queued deltas.
	Len(ctx context.Context) int

	// Close shuts down the queue. After closing, no new deltas are
	// accepted; consumers drain the remainder.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue over a buffered channel.
type InMemoryQueue struct {
	deltas   chan Delta
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.deltas = make(chan Delta, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue adds a delta without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, d Delta) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.deltas <- d:
		metrics.RecordQueueEnqueue()
		q.updateGauges()
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejection()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueRejection()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives deltas until the queue is
// closed and drained or ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Delta {
	out := make(chan Delta)
	go func() {
		defer close(out)
		for d := range q.deltas {
			select {
			case out <- d:
				metrics.RecordQueueDequeue()
				q.updateGauges()
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued deltas.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.deltas)
	metrics.UpdateQueueSize(size)
	return size
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.deltas)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) updateGauges() {
	size := len(q.deltas)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
