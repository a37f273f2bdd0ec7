// Package service wires the session engine to the leaderboard: it is
// the aggregator that consumes heartbeat deltas and completion facts
// and answers ranking queries per caller timezone.
package service

import (
	"context"
	"fmt"
	"runtime"
	"time"

	deltaqueue "github.com/zensu/focusflow/internal/adapters/mq/queue"
	workerpool "github.com/zensu/focusflow/internal/adapters/mq/worker"
	"github.com/zensu/focusflow/internal/adapters/repository"
	"github.com/zensu/focusflow/internal/domain/daykey"
	"github.com/zensu/focusflow/internal/domain/dedupe"
	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/internal/domain/types"
	"github.com/zensu/focusflow/internal/session"
	sessionstore "github.com/zensu/focusflow/internal/session/store"
	"github.com/zensu/focusflow/pkg/clock"
	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/metrics"
	"github.com/zensu/focusflow/pkg/retry"
)

// Service owns the full pipeline: tracker -> dedupe -> queue -> workers
// -> sharded store, plus the query surface over it.
type Service struct {
	// Core components, built in Start.
	sessions     *session.Tracker
	runner       *session.Runner
	sessionStore sessionstore.Store
	leaderboard  repository.Store
	boardStore   *repository.ShardedStore
	deduper      dedupe.Deduper
	deltaQueue   deltaqueue.Queue
	workerPool   *workerpool.Pool

	// Configuration.
	workerCount       int
	queueSize         int
	heartbeatInterval time.Duration
	retention         time.Duration
	sweepInterval     time.Duration
	dedupeCacheMB     int
	dedupeTTL         time.Duration
	sessionStorePath  string
	snapshotPath      string
	snapshotInterval  time.Duration
	defaultScope      string
	maxBoardLimit     int

	clock   clock.Clock
	retrier *retry.Retrier

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of delta worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the delta queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithHeartbeatInterval sets the session tick cadence.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.heartbeatInterval = d
		}
	}
}

// WithRetention sets how long a day's shard stays queryable.
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets the expired-shard sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithDedupeCache sizes the delta-id cache and its TTL.
func WithDedupeCache(mb int, ttl time.Duration) Option {
	return func(s *Service) {
		if mb > 0 {
			s.dedupeCacheMB = mb
		}
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithSessionStorePath enables file-backed session persistence.
// Empty keeps the in-memory store (tests, embedding).
func WithSessionStorePath(path string) Option {
	return func(s *Service) {
		s.sessionStorePath = path
	}
}

// WithSnapshot enables leaderboard snapshot persistence.
func WithSnapshot(path string, interval time.Duration) Option {
	return func(s *Service) {
		s.snapshotPath = path
		s.snapshotInterval = interval
	}
}

// WithDefaultScope sets the scope sessions join when none is given.
func WithDefaultScope(scope string) Option {
	return func(s *Service) {
		if scope != "" {
			s.defaultScope = scope
		}
	}
}

// WithMaxLeaderboardLimit caps the page size of TopN queries.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBoardLimit = n
		}
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU() * 2,
		queueSize:         100000,
		heartbeatInterval: time.Second,
		retention:         48 * time.Hour,
		sweepInterval:     time.Minute,
		dedupeCacheMB:     16,
		dedupeTTL:         10 * time.Minute,
		defaultScope:      "global",
		maxBoardLimit:     100,
		clock:             clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and launches every component. Previously persisted
// sessions are restored so elapsed time survives the restart.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting focus tracking service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	boardOpts := []repository.Option{
		repository.WithStoreClock(s.clock),
		repository.WithRetention(s.retention),
		repository.WithSweepInterval(s.sweepInterval),
	}
	if s.snapshotPath != "" {
		boardOpts = append(boardOpts, repository.WithSnapshot(s.snapshotPath, s.snapshotInterval))
	}
	s.boardStore = repository.NewShardedStore(runCtx, boardOpts...)
	s.leaderboard = s.boardStore

	s.deduper = dedupe.NewCacheDeduper(
		dedupe.WithCacheSizeMB(s.dedupeCacheMB),
		dedupe.WithTTLSeconds(int(s.dedupeTTL/time.Second)),
	)
	s.deltaQueue = deltaqueue.NewInMemoryQueue(
		deltaqueue.WithCapacity(s.queueSize),
	)

	if s.sessionStorePath != "" {
		fs, err := sessionstore.NewFileStore(s.sessionStorePath)
		if err != nil {
			cancel()
			return fmt.Errorf("open session store: %w", err)
		}
		s.sessionStore = fs
	} else {
		s.sessionStore = sessionstore.NewMemoryStore()
	}

	s.sessions = session.NewTracker(s.sessionStore, s,
		session.WithClock(s.clock),
	)
	restored, err := s.sessions.RestoreAll(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("restore sessions: %w", err)
	}
	if restored > 0 {
		s.logger.Info(ctx, "sessions restored", logger.Int("count", restored))
	}

	s.workerPool = workerpool.NewPool(s.workerCount, s.deltaQueue, s.leaderboard)
	s.workerPool.Start(runCtx)

	s.runner = session.NewRunner(s.sessions, session.WithInterval(s.heartbeatInterval))
	s.runner.Start(runCtx)

	// Completion reconciliation retries transient store failures before
	// giving up, because a dropped remainder cannot be re-derived later.
	s.retrier = retry.New(
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(50*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
	)

	s.started = true
	s.logger.Info(ctx, "focus tracking service started",
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("heartbeatInterval", s.heartbeatInterval),
		logger.Duration("retention", s.retention),
	)
	return nil
}

// Stop shuts the pipeline down in dependency order: ticks stop first,
// then the queue drains through the workers, then the store closes
// (writing a final snapshot when enabled).
func (s *Service) Stop() {
	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping focus tracking service...")

	s.runner.Stop()
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}
	if err := s.boardStore.Close(); err != nil {
		s.logger.Error(ctx, "leaderboard close failed", logger.Error(err))
	}
	if closer, ok := s.sessionStore.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "focus tracking service stopped")
}

// Session facade ---------------------------------------------------------

// StartSession begins a focus session. An empty scope list joins the
// default scope.
func (s *Service) StartSession(ctx context.Context, userID, subjectID, tz string, scopes []string) (model.SessionRecord, error) {
	if !s.started {
		return model.SessionRecord{}, ErrNotStarted
	}
	if _, err := daykey.Zone(tz); err != nil {
		return model.SessionRecord{}, err
	}
	if len(scopes) == 0 {
		scopes = []string{s.defaultScope}
	}
	return s.sessions.Start(ctx, userID, subjectID, tz, scopes)
}

// CompleteSession finishes the user's session.
func (s *Service) CompleteSession(ctx context.Context, userID string) (model.CompletedSession, error) {
	if !s.started {
		return model.CompletedSession{}, ErrNotStarted
	}
	return s.sessions.Complete(ctx, userID)
}

// MarkInterrupted flags a focus loss on the user's session.
func (s *Service) MarkInterrupted(ctx context.Context, userID string) error {
	if !s.started {
		return ErrNotStarted
	}
	return s.sessions.MarkInterrupted(ctx, userID)
}

// MarkResumedFocus clears the focus-loss flag.
func (s *Service) MarkResumedFocus(ctx context.Context, userID string) error {
	if !s.started {
		return ErrNotStarted
	}
	return s.sessions.MarkResumedFocus(ctx, userID)
}

// Heartbeat runs one tick for a single session and returns its total
// elapsed seconds. The transport uses this when a client drives its
// own cadence instead of relying on the runner.
func (s *Service) Heartbeat(ctx context.Context, userID string) (int64, error) {
	if !s.started {
		return 0, ErrNotStarted
	}
	return s.sessions.Heartbeat(ctx, userID)
}

// SessionSnapshot returns the user's current session record.
func (s *Service) SessionSnapshot(userID string) (model.SessionRecord, error) {
	if !s.started {
		return model.SessionRecord{}, ErrNotStarted
	}
	return s.sessions.Snapshot(userID)
}

// Elapsed returns live elapsed whole seconds for the user's session.
func (s *Service) Elapsed(userID string) (int64, error) {
	if !s.started {
		return 0, ErrNotStarted
	}
	return s.sessions.Elapsed(userID)
}

// session.Sink -----------------------------------------------------------

// OnHeartbeat accepts a delta from the tracker: dedupe on the delta id
// so a re-offered delta after a crash or retry counts once, then hand
// it to the queue. A full queue unrecords the id because the delta was
// NOT applied and its retry must pass the dedupe check.
func (s *Service) OnHeartbeat(ctx context.Context, d model.HeartbeatDelta) error {
	if s.deduper.SeenAndRecord(ctx, d.DeltaID) {
		metrics.RecordHeartbeatDuplicate()
		s.logger.Debug(ctx, "duplicate delta dropped",
			logger.String("deltaID", d.DeltaID),
		)
		return nil
	}
	if !s.deltaQueue.Enqueue(ctx, d) {
		s.deduper.Unrecord(ctx, d.DeltaID)
		return fmt.Errorf("%w: delta %s", ErrBackpressure, d.DeltaID)
	}
	return nil
}

// OnSessionComplete reconciles the session's total: whatever the
// heartbeats did not credit (missed ticks, rejected deltas still in
// flight at completion) lands in the completion day, synchronously, so
// the day totals match the session fact before Complete returns.
func (s *Service) OnSessionComplete(ctx context.Context, cs model.CompletedSession, tz string, scopes []string) error {
	remainder := cs.DurationSeconds - cs.CreditedSeconds
	if remainder <= 0 {
		return nil
	}

	reconcileID := cs.SessionID + "#final"
	if s.deduper.SeenAndRecord(ctx, reconcileID) {
		metrics.RecordHeartbeatDuplicate()
		return nil
	}

	day, err := daykey.KeyForZone(tz, cs.End)
	if err != nil {
		s.logger.Warn(ctx, "unknown timezone on completion, using UTC",
			logger.String("sessionID", cs.SessionID),
			logger.String("timezone", tz),
		)
		day = daykey.Key(time.UTC, cs.End)
	}

	for _, scope := range scopes {
		scope := scope
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			_, incErr := s.leaderboard.Increment(ctx, scope, day, cs.UserID, remainder)
			return incErr
		})
		if err != nil {
			s.deduper.Unrecord(ctx, reconcileID)
			return fmt.Errorf("reconcile %s/%s for %s: %w", scope, day, cs.UserID, err)
		}
	}
	s.logger.Debug(ctx, "completion reconciled",
		logger.String("sessionID", cs.SessionID),
		logger.Int64("remainderSeconds", remainder),
		logger.String("day", day),
	)
	return nil
}

// Queries ----------------------------------------------------------------

// TopN returns the top n entries of scope's board for today in tz.
func (s *Service) TopN(ctx context.Context, scope, tz string, n int) ([]types.Entry, error) {
	if !s.started {
		return nil, ErrNotStarted
	}
	if scope == "" {
		scope = s.defaultScope
	}
	if n > s.maxBoardLimit {
		n = s.maxBoardLimit
	}
	day, err := s.today(tz)
	if err != nil {
		return nil, err
	}
	return s.leaderboard.TopN(ctx, scope, day, n)
}

// Rank returns the user's position on scope's board for today in tz.
func (s *Service) Rank(ctx context.Context, scope, tz, userID string) (types.Entry, error) {
	if !s.started {
		return types.Entry{}, ErrNotStarted
	}
	if scope == "" {
		scope = s.defaultScope
	}
	day, err := s.today(tz)
	if err != nil {
		return types.Entry{}, err
	}
	return s.leaderboard.Rank(ctx, scope, day, userID)
}

// UserToday returns the user's accumulated seconds for today in tz.
func (s *Service) UserToday(ctx context.Context, scope, tz, userID string) (int64, error) {
	if !s.started {
		return 0, ErrNotStarted
	}
	if scope == "" {
		scope = s.defaultScope
	}
	day, err := s.today(tz)
	if err != nil {
		return 0, err
	}
	return s.leaderboard.UserSeconds(ctx, scope, day, userID)
}

func (s *Service) today(tz string) (string, error) {
	loc, err := daykey.Zone(tz)
	if err != nil {
		return "", err
	}
	return daykey.Key(loc, s.clock.Now()), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"defaultScope": s.defaultScope,
	}
	if s.started {
		ctx := context.Background()
		stats["queueLength"] = s.deltaQueue.Len(ctx)
		stats["activeSessions"] = len(s.sessions.ActiveUserIDs())
		stats["liveShards"] = s.boardStore.ShardCount()
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}

// Tick drives one heartbeat pass manually. Exported for embedders and
// tests that own the cadence instead of the runner.
func (s *Service) Tick(ctx context.Context) {
	s.runner.Tick(ctx)
}
