package repository

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/zensu/focusflow/internal/domain/types"
	"github.com/zensu/focusflow/pkg/clock"
	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/metrics"
)

// minRetention is the floor for shard lifetime. A day's board must
// outlive the day itself everywhere on the planet plus a grace period,
// so queries from trailing timezones never see a vanished shard.
const minRetention = 48 * time.Hour

type shardKey struct {
	scope string
	day   string
}

// shard is one (scope, day) leaderboard: a treap ordered by seconds
// DESC then userID ASC, plus a map for O(1) total lookups. In-order
// traversal of the treap produces the board from best to worst.
type shard struct {
	mu      sync.RWMutex
	root    *node
	seconds map[string]int64
	expiry  time.Time
}

// treap node
type node struct {
	userID  string
	seconds int64
	prio    uint64
	left    *node
	right   *node
	size    int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aSec, aID) ranks earlier than (bSec, bID).
func less(aSec int64, aID string, bSec int64, bID string) bool {
	if aSec != bSec {
		return aSec > bSec
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, userID string, seconds int64) *node {
	if n == nil {
		return &node{userID: userID, seconds: seconds, prio: rand.Uint64(), size: 1}
	}
	if less(seconds, userID, n.seconds, n.userID) {
		n.left = insert(n.left, userID, seconds)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, userID, seconds)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, userID string, seconds int64) *node {
	if n == nil {
		return nil
	}
	if seconds == n.seconds && userID == n.userID {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, userID, seconds)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, userID, seconds)
		}
	} else if less(seconds, userID, n.seconds, n.userID) {
		n.left = deleteNode(n.left, userID, seconds)
	} else {
		n.right = deleteNode(n.right, userID, seconds)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, types.Entry{UserID: n.userID, Seconds: n.seconds})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// assignDenseRanks walks entries already in rank order and gives users
// with equal totals the same 1-based rank.
func assignDenseRanks(entries []types.Entry) {
	rank := 0
	prev := int64(-1)
	for i := range entries {
		if entries[i].Seconds != prev {
			rank++
			prev = entries[i].Seconds
		}
		entries[i].Rank = rank
	}
}

// ShardedStore is the in-memory Store implementation. The outer lock
// only guards the shard map; all counter mutation happens under the
// per-shard lock, so users in different shards never contend.
type ShardedStore struct {
	mu     sync.RWMutex
	shards map[shardKey]*shard

	clock         clock.Clock
	log           logger.Logger
	retention     time.Duration
	sweepInterval time.Duration

	snapshotPath     string
	snapshotInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewShardedStore constructs the store and starts its background
// sweep (and snapshot loop when a path is configured).
func NewShardedStore(ctx context.Context, opts ...Option) *ShardedStore {
	s := &ShardedStore{
		shards:        make(map[shardKey]*shard),
		clock:         clock.New(),
		retention:     minRetention,
		sweepInterval: time.Minute,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retention < minRetention {
		s.retention = minRetention
	}
	if s.log == nil {
		s.log = logger.Get().Named("leaderboard")
	}

	if s.snapshotPath != "" {
		if err := s.LoadSnapshot(ctx); err != nil {
			s.log.Warn(ctx, "leaderboard snapshot load failed",
				logger.String("path", s.snapshotPath),
				logger.Error(err),
			)
		}
		s.startPeriodicSnapshots(ctx)
	}
	s.startSweeper(ctx)

	metrics.UpdateStoreShardCount(len(s.shards))
	return s
}

// Close stops the background goroutines. When snapshots are enabled a
// final one is written so a clean shutdown loses nothing.
func (s *ShardedStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	if s.snapshotPath != "" {
		return s.SaveSnapshot(context.Background())
	}
	return nil
}

// Increment implements Store.
func (s *ShardedStore) Increment(ctx context.Context, scope, day, userID string, seconds int64) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreIncrementLatency(float64(time.Since(start).Milliseconds()))
	}()

	if seconds <= 0 {
		return s.UserSeconds(ctx, scope, day, userID)
	}

	sh := s.getOrCreateShard(shardKey{scope: scope, day: day})

	sh.mu.Lock()
	defer sh.mu.Unlock()
	old, existed := sh.seconds[userID]
	if existed {
		sh.root = deleteNode(sh.root, userID, old)
	}
	total := old + seconds
	sh.seconds[userID] = total
	sh.root = insert(sh.root, userID, total)

	metrics.RecordDeltaApplied(seconds)
	return total, nil
}

// TopN implements Store.
func (s *ShardedStore) TopN(ctx context.Context, scope, day string, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("leaderboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	sh := s.liveShard(shardKey{scope: scope, day: day})
	if sh == nil {
		return []types.Entry{}, nil
	}

	sh.mu.RLock()
	defer sh.mu.RUnlock()
	out := make([]types.Entry, 0, n)
	collectTopN(sh.root, n, &out)
	assignDenseRanks(out)
	return out, nil
}

// UserSeconds implements Store.
func (s *ShardedStore) UserSeconds(ctx context.Context, scope, day, userID string) (int64, error) {
	sh := s.liveShard(shardKey{scope: scope, day: day})
	if sh == nil {
		return 0, nil
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.seconds[userID], nil
}

// Rank implements Store. Ranks are dense: users with equal totals
// share a rank and the next distinct total takes the following one.
func (s *ShardedStore) Rank(ctx context.Context, scope, day, userID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	sh := s.liveShard(shardKey{scope: scope, day: day})
	if sh == nil {
		metrics.RecordErrorByComponent("leaderboard", "not_found")
		return types.Entry{}, ErrNotFound
	}

	sh.mu.RLock()
	defer sh.mu.RUnlock()
	target, ok := sh.seconds[userID]
	if !ok {
		metrics.RecordErrorByComponent("leaderboard", "not_found")
		return types.Entry{}, ErrNotFound
	}

	// In-order traversal yields rank order; count distinct totals
	// strictly above the target to derive the dense rank.
	rank := 1
	prev := int64(-1)
	var walk func(n *node) bool
	walk = func(n *node) bool {
		if n == nil {
			return false
		}
		if walk(n.left) {
			return true
		}
		if n.seconds <= target {
			return true
		}
		if n.seconds != prev {
			if prev != -1 {
				rank++
			}
			prev = n.seconds
		}
		return walk(n.right)
	}
	if walk(sh.root) && prev != -1 {
		rank++
	}
	return types.Entry{Rank: rank, UserID: userID, Seconds: target}, nil
}

// Count implements Store.
func (s *ShardedStore) Count(ctx context.Context, scope, day string) int {
	sh := s.liveShard(shardKey{scope: scope, day: day})
	if sh == nil {
		return 0
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.seconds)
}

// ShardCount returns the number of live shards.
func (s *ShardedStore) ShardCount() int {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sh := range s.shards {
		if now.Before(sh.expiry) {
			n++
		}
	}
	return n
}

func (s *ShardedStore) getOrCreateShard(key shardKey) *shard {
	now := s.clock.Now()

	s.mu.RLock()
	sh, ok := s.shards[key]
	s.mu.RUnlock()
	if ok && now.Before(sh.expiry) {
		return sh
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok = s.shards[key]
	if ok && now.Before(sh.expiry) {
		return sh
	}
	if ok {
		metrics.RecordShardPurged()
	}
	sh = &shard{
		seconds: make(map[string]int64),
		expiry:  now.Add(s.retention),
	}
	s.shards[key] = sh
	metrics.UpdateStoreShardCount(len(s.shards))
	return sh
}

// liveShard returns the shard for key, or nil when absent or expired.
// An expired shard found on the read path is dropped eagerly so the
// sweep loop is an optimization, not a correctness dependency.
func (s *ShardedStore) liveShard(key shardKey) *shard {
	now := s.clock.Now()

	s.mu.RLock()
	sh, ok := s.shards[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if now.Before(sh.expiry) {
		return sh
	}

	s.mu.Lock()
	if cur, still := s.shards[key]; still && cur == sh {
		delete(s.shards, key)
		metrics.RecordShardPurged()
		metrics.UpdateStoreShardCount(len(s.shards))
	}
	s.mu.Unlock()
	return nil
}

func (s *ShardedStore) startSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// sweep drops every expired shard and refreshes gauges.
func (s *ShardedStore) sweep(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	purged := 0
	for key, sh := range s.shards {
		if !now.Before(sh.expiry) {
			delete(s.shards, key)
			purged++
			continue
		}
		sh.mu.RLock()
		users := len(sh.seconds)
		sh.mu.RUnlock()
		metrics.UpdateStoreUsersPerShard(key.scope+"/"+key.day, users)
	}
	total := len(s.shards)
	s.mu.Unlock()

	for i := 0; i < purged; i++ {
		metrics.RecordShardPurged()
	}
	metrics.UpdateStoreShardCount(total)
	if purged > 0 {
		s.log.Info(ctx, "expired shards swept",
			logger.Int("purged", purged),
			logger.Int("remaining", total),
		)
	}
}
