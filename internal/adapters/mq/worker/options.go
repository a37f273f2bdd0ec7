package worker

import (
	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/retry"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetrier overrides the backoff policy for store increments.
func WithRetrier(r *retry.Retrier) Option {
	return func(w *InMemoryWorker) {
		if r != nil {
			w.retrier = r
		}
	}
}
