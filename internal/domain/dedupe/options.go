// Package dedupe defines the interface for idempotency tracking.
package dedupe

// config holds construction parameters for the cache deduper.
type config struct {
	sizeMB     int
	ttlSeconds int
}

// Option applies a configuration option to the cache deduper.
type Option func(*config)

// WithCacheSizeMB sets the cache memory budget in megabytes.
func WithCacheSizeMB(mb int) Option {
	return func(c *config) {
		if mb > 0 {
			c.sizeMB = mb
		}
	}
}

// WithTTLSeconds sets how long a recorded id stays seen. The TTL only
// needs to exceed the longest retry window of a delta delivery.
func WithTTLSeconds(sec int) Option {
	return func(c *config) {
		if sec > 0 {
			c.ttlSeconds = sec
		}
	}
}
