// Package dedupe defines the interface for idempotency tracking.
//
// Heartbeat deltas are retried on timeout; the deduper guarantees a
// retried delta id is applied at most once. Entries only need to live
// as long as a retry can arrive, so the cache is TTL-bounded.
package dedupe

import (
	"context"
	"sync"

	"github.com/coocood/freecache"
)

// Deduper records seen delta IDs to ensure at-most-once application.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if
	// not. Returns true if id was already seen, false if it was newly
	// recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing a retry. Used
	// when an id was marked seen but failed to be enqueued.
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of tracked IDs.
	Size() int64
}

// seen is the value stored per id; freecache only needs a payload.
var seen = []byte{1}

// cacheDeduper implements Deduper on a freecache instance. freecache
// evicts by TTL and LRU under memory pressure, which bounds the cache
// without a hand-rolled eviction list. The mutex makes check-then-set
// atomic; freecache itself is only individually thread-safe.
type cacheDeduper struct {
	mu    sync.Mutex
	cache *freecache.Cache
	ttl   int
}

// NewCacheDeduper creates a deduper with configuration options.
func NewCacheDeduper(opts ...Option) Deduper {
	d := &config{
		sizeMB:     16,
		ttlSeconds: 600,
	}
	for _, opt := range opts {
		opt(d)
	}
	return &cacheDeduper{
		cache: freecache.NewCache(d.sizeMB * 1024 * 1024),
		ttl:   d.ttlSeconds,
	}
}

func (d *cacheDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	key := []byte(id)
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.cache.Get(key); err == nil {
		return true
	}
	_ = d.cache.Set(key, seen, d.ttl)
	return false
}

func (d *cacheDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Del([]byte(id))
}

func (d *cacheDeduper) Size() int64 {
	return d.cache.EntryCount()
}
