package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zensu/focusflow/pkg/logger"
)

const defaultHeartbeatInterval = time.Second

// Runner drives the periodic heartbeat tick for every live session.
// It replaces the UI event loop that owned the tick in a client app:
// the tracker owns its own schedule here.
type Runner struct {
	tracker  *Tracker
	interval time.Duration
	log      logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// RunnerOption applies a configuration option to the Runner.
type RunnerOption func(*Runner)

// WithInterval sets the heartbeat cadence.
func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a heartbeat runner over the tracker.
func NewRunner(tracker *Tracker, opts ...RunnerOption) *Runner {
	r := &Runner{
		tracker:  tracker,
		interval: defaultHeartbeatInterval,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get().Named("heartbeat")
	}
	return r
}

// Start launches the tick loop until ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.Tick(ctx)
			}
		}
	}()
}

// Tick runs one heartbeat pass over all live sessions. Exported so
// tests and embedders can drive the cadence themselves.
func (r *Runner) Tick(ctx context.Context) {
	for _, userID := range r.tracker.ActiveUserIDs() {
		if _, err := r.tracker.Heartbeat(ctx, userID); err != nil {
			// A session may complete between listing and ticking.
			if errors.Is(err, ErrNoActiveSession) {
				continue
			}
			r.log.Warn(ctx, "heartbeat failed",
				logger.String("userID", userID),
				logger.Error(err),
			)
		}
	}
}

// Stop halts the tick loop and waits for it to finish.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
