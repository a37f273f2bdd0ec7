package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/metrics"
)

const snapshotVersion = 1

// snapshotEnvelope is the on-disk shape: a versioned, gzip-compressed
// JSON document of every live shard.
type snapshotEnvelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Shards  []shardSnapshot `json:"shards"`
}

type shardSnapshot struct {
	Scope   string           `json:"scope"`
	Day     string           `json:"day"`
	Expiry  time.Time        `json:"expiry"`
	Seconds map[string]int64 `json:"seconds"`
}

// SaveSnapshot writes every live shard to the configured path. The
// write is atomic: a temp file in the same directory is synced and
// renamed over the target, so a crash mid-write never corrupts the
// previous snapshot.
func (s *ShardedStore) SaveSnapshot(ctx context.Context) error {
	now := s.clock.Now()

	s.mu.RLock()
	shards := make([]shardSnapshot, 0, len(s.shards))
	for key, sh := range s.shards {
		if !now.Before(sh.expiry) {
			continue
		}
		sh.mu.RLock()
		seconds := make(map[string]int64, len(sh.seconds))
		for id, sec := range sh.seconds {
			seconds[id] = sec
		}
		expiry := sh.expiry
		sh.mu.RUnlock()
		shards = append(shards, shardSnapshot{
			Scope:   key.scope,
			Day:     key.day,
			Expiry:  expiry,
			Seconds: seconds,
		})
	}
	s.mu.RUnlock()

	env := snapshotEnvelope{Version: snapshotVersion, SavedAt: now, Shards: shards}
	if err := s.writeSnapshotFile(env); err != nil {
		metrics.RecordErrorByComponent("leaderboard", "snapshot_save")
		return fmt.Errorf("%w: %v", ErrSnapshotIO, err)
	}
	metrics.RecordSnapshotSave()
	return nil
}

func (s *ShardedStore) writeSnapshotFile(env snapshotEnvelope) error {
	dir := filepath.Dir(s.snapshotPath)
	tmp, err := os.CreateTemp(dir, ".leaderboard-*.json.gz")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := json.NewEncoder(gz).Encode(env); err != nil {
		tmp.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.snapshotPath)
}

// LoadSnapshot rebuilds live shards from the configured path. Shards
// whose expiry has passed are skipped. A missing file is not an error:
// first boot starts empty.
func (s *ShardedStore) LoadSnapshot(ctx context.Context) error {
	f, err := os.Open(s.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrSnapshotIO, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotIO, err)
	}
	defer gz.Close()

	var env snapshotEnvelope
	if err := json.NewDecoder(gz).Decode(&env); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSnapshotIO, err)
	}
	if env.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", ErrSnapshotIO, env.Version)
	}

	now := s.clock.Now()
	loaded, skipped := 0, 0

	s.mu.Lock()
	for _, snap := range env.Shards {
		if !now.Before(snap.Expiry) {
			skipped++
			continue
		}
		sh := &shard{
			seconds: make(map[string]int64, len(snap.Seconds)),
			expiry:  snap.Expiry,
		}
		for id, sec := range snap.Seconds {
			sh.seconds[id] = sec
			sh.root = insert(sh.root, id, sec)
		}
		s.shards[shardKey{scope: snap.Scope, day: snap.Day}] = sh
		loaded++
	}
	total := len(s.shards)
	s.mu.Unlock()

	metrics.UpdateStoreShardCount(total)
	metrics.RecordSnapshotLoad()
	s.log.Info(ctx, "leaderboard snapshot loaded",
		logger.String("path", s.snapshotPath),
		logger.Int("shards", loaded),
		logger.Int("expired", skipped),
	)
	return nil
}

func (s *ShardedStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx); err != nil {
					s.log.Warn(ctx, "periodic snapshot failed", logger.Error(err))
				}
			}
		}
	}()
}
