// Package worker applies heartbeat deltas to the leaderboard store.
//
// Each worker dequeues deltas, resolves the day key from the delta's
// own timezone and instant, and increments every scope the session
// belongs to. Increments retry with bounded backoff; a delta is never
// dropped because a write was slow.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/zensu/focusflow/internal/adapters/mq/queue"
	"github.com/zensu/focusflow/internal/domain/daykey"
	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/metrics"
	"github.com/zensu/focusflow/pkg/retry"
)

const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Delta abstracts what workers read off the queue.
type Delta = queue.Delta

// Applier adds study seconds to a (scope, day) leaderboard shard.
type Applier interface {
	Increment(ctx context.Context, scope, day, userID string, seconds int64) (int64, error)
}

// Queue defines how workers receive deltas.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Delta
}

// Worker processes deltas until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker, draining in-flight work.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	retrier *retry.Retrier

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	if w.retrier == nil {
		w.retrier = retry.New(
			retry.WithMaxAttempts(5),
			retry.WithInitialDelay(50*time.Millisecond),
			retry.WithMaxDelay(2*time.Second),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				metrics.RecordWorkerRetry()
			}),
		)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	deltaChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case d, ok := <-deltaChan:
			if !ok {
				return
			}
			if err := w.processDelta(ctx, d); err != nil {
				w.logger.Error(ctx, "delta processing failed",
					logger.String("deltaID", d.DeltaID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processDelta applies one delta to every scope it belongs to. The day
// is derived from the delta's own instant projected into the session's
// timezone, so seconds earned before local midnight stay in that day
// even when the delta is applied after it.
func (w *InMemoryWorker) processDelta(ctx context.Context, d Delta) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	day, err := daykey.KeyForZone(d.Timezone, d.At)
	if err != nil {
		// Unresolvable zone on a live delta: count the seconds in UTC
		// rather than losing them.
		w.logger.Warn(ctx, "unknown timezone on delta, using UTC",
			logger.String("deltaID", d.DeltaID),
			logger.String("timezone", d.Timezone),
		)
		metrics.RecordErrorByComponent("worker", "unknown_timezone")
		day = daykey.Key(time.UTC, d.At)
	}

	for _, scope := range d.Scopes {
		scope := scope
		err := w.retrier.Do(ctx, func(ctx context.Context) error {
			_, incErr := w.applier.Increment(ctx, scope, day, d.UserID, d.Seconds)
			return incErr
		})
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "increment_failed")
			return fmt.Errorf("increment %s/%s for %s: %w", scope, day, d.UserID, err)
		}
	}
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one
// falls back to a CPU-derived default.
func NewPool(workerCount int, q Queue, applier Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		named := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, applier, named...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown closes the queue so workers drain the backlog, then waits
// for them to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
