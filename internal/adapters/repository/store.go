// Package repository implements the sharded daily leaderboard store.
//
// A shard holds one day's accumulated study seconds for one scope,
// keyed by (scope, dayKey). Shards expire a retention period after
// creation; an expired shard is logically absent, which is what makes
// local-midnight rollover implicit: a user's heartbeats simply start
// landing in the next day's shard.
package repository

import (
	"context"

	"github.com/zensu/focusflow/internal/domain/types"
)

// Store provides read/write access to the daily ranking state.
type Store interface {
	// Increment atomically adds seconds to the user's total for the
	// (scope, day) shard, creating the shard on first write. Returns
	// the new accumulated total. Increments are commutative: the final
	// total is the sum of applied seconds under any interleaving.
	Increment(ctx context.Context, scope, day, userID string, seconds int64) (int64, error)

	// TopN returns up to n entries ordered by seconds DESC, userID ASC.
	// An absent or expired shard yields an empty slice.
	TopN(ctx context.Context, scope, day string, n int) ([]types.Entry, error)

	// UserSeconds returns the user's accumulated seconds, or 0 when the
	// user or shard is unknown.
	UserSeconds(ctx context.Context, scope, day, userID string) (int64, error)

	// Rank returns the user's 1-based dense rank and total.
	// Returns ErrNotFound when the user has no seconds in the shard.
	Rank(ctx context.Context, scope, day, userID string) (types.Entry, error)

	// Count returns the number of users in the shard.
	Count(ctx context.Context, scope, day string) int
}
