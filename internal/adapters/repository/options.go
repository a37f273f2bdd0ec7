package repository

import (
	"time"

	"github.com/zensu/focusflow/pkg/clock"
	"github.com/zensu/focusflow/pkg/logger"
)

// Option applies a configuration option to the ShardedStore.
type Option func(*ShardedStore)

// WithRetention sets how long a shard lives after creation. Values
// below 48h are clamped up so a day's board survives the day in every
// timezone.
func WithRetention(d time.Duration) Option {
	return func(s *ShardedStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets the cadence of the expired-shard sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(s *ShardedStore) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithStoreClock injects the time source used for expiry decisions.
func WithStoreClock(c clock.Clock) Option {
	return func(s *ShardedStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(l logger.Logger) Option {
	return func(s *ShardedStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSnapshot enables periodic snapshot persistence at path.
func WithSnapshot(path string, interval time.Duration) Option {
	return func(s *ShardedStore) {
		s.snapshotPath = path
		if interval > 0 {
			s.snapshotInterval = interval
		} else {
			s.snapshotInterval = time.Minute
		}
	}
}
