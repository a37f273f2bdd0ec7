// Package config defines service configuration structures and loading hooks.
package config

import "runtime"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory heartbeat delta queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of delta workers.
	WorkerCount int `koanf:"worker_count"`

	// HeartbeatIntervalMS sets the session tick cadence.
	HeartbeatIntervalMS int `koanf:"heartbeat_interval_ms"`

	// RetentionHours sets how long a day's leaderboard shard stays
	// queryable. Values below 48 are clamped up: a day must remain
	// readable until it has ended in every timezone.
	RetentionHours int `koanf:"retention_hours"`

	// SweepIntervalSec sets the expired-shard sweep cadence.
	SweepIntervalSec int `koanf:"sweep_interval_sec"`

	// DedupeCacheMB sizes the delta-id cache.
	DedupeCacheMB int `koanf:"dedupe_cache_mb"`

	// DedupeTTLSec sets how long a delta id stays recorded.
	DedupeTTLSec int `koanf:"dedupe_ttl_sec"`

	// SessionStorePath holds the durable session record file. Empty
	// keeps sessions in memory only.
	SessionStorePath string `koanf:"session_store_path"`

	// SnapshotPath holds the leaderboard snapshot file. Empty disables
	// snapshot persistence.
	SnapshotPath string `koanf:"snapshot_path"`

	// SnapshotIntervalSec sets the snapshot cadence.
	SnapshotIntervalSec int `koanf:"snapshot_interval_sec"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DefaultScope is the leaderboard scope sessions join when the
	// start request names none.
	DefaultScope string `koanf:"default_scope"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           100_000,
		WorkerCount:         runtime.NumCPU() * 2,
		HeartbeatIntervalMS: 1000,
		RetentionHours:      48,
		SweepIntervalSec:    60,
		DedupeCacheMB:       16,
		DedupeTTLSec:        600,
		SnapshotIntervalSec: 60,
		MaxLeaderboardLimit: 100,
		DefaultScope:        "global",
	}
}
