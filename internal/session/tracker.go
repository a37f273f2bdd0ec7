// Package session implements the per-user focus session state machine.
//
// Lifecycle: Idle -> Active <-> Interrupted -> Completed -> Idle.
// Elapsed time is always recomputed as now minus the persisted start
// instant, never by incrementing a counter, so missed ticks and process
// restarts cannot drift the total. Interruption is advisory metadata:
// the clock keeps running while the flag is set.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zensu/focusflow/internal/domain/model"
	"github.com/zensu/focusflow/internal/session/store"
	"github.com/zensu/focusflow/pkg/clock"
	"github.com/zensu/focusflow/pkg/logger"
	"github.com/zensu/focusflow/pkg/metrics"
)

// Sink consumes the tracker's output events. The aggregator implements
// it; tests use stubs.
type Sink interface {
	// OnHeartbeat delivers an incremental study-time contribution.
	// A non-nil error means the delta was not accepted and the same
	// seconds will be re-offered under the same delta id.
	OnHeartbeat(ctx context.Context, delta model.HeartbeatDelta) error

	// OnSessionComplete delivers the final session fact synchronously.
	OnSessionComplete(ctx context.Context, cs model.CompletedSession, timezone string, scopes []string) error
}

// userSession pairs a record with its own lock so users never contend
// with each other.
type userSession struct {
	mu  sync.Mutex
	rec model.SessionRecord

	// completionEmitted guards exactly-once emission when a completion
	// succeeded but the durable delete failed and the call is retried.
	completionEmitted bool
	completed         model.CompletedSession
}

// Tracker manages the independent session machines of many users. The
// outer lock only guards the session map; all record mutation happens
// under the per-user lock.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*userSession

	store store.Store
	clock clock.Clock
	sink  Sink
	log   logger.Logger

	// maxResumeGap bounds plausible elapsed time on resume; anything
	// beyond it is treated as clock skew and clamped.
	maxResumeGap time.Duration
}

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// WithMaxResumeGap sets the plausibility bound for resumed elapsed time.
func WithMaxResumeGap(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.maxResumeGap = d
		}
	}
}

// NewTracker constructs a tracker over the given durable store and sink.
func NewTracker(st store.Store, sink Sink, opts ...Option) *Tracker {
	t := &Tracker{
		sessions:     make(map[string]*userSession),
		store:        st,
		clock:        clock.New(),
		sink:         sink,
		maxResumeGap: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = logger.Get().Named("session")
	}
	return t
}

// Start begins a new focus session for the user. The durable write
// completes before success is returned; on write failure no in-memory
// state advances, so a retry behaves as a fresh start.
func (t *Tracker) Start(ctx context.Context, userID, subjectID, timezone string, scopes []string) (model.SessionRecord, error) {
	now := t.clock.Now()

	us := &userSession{}
	us.mu.Lock()
	defer us.mu.Unlock()

	t.mu.Lock()
	if _, exists := t.sessions[userID]; exists {
		t.mu.Unlock()
		return model.SessionRecord{}, ErrSessionExists
	}
	// Reserve the slot under the per-user lock so concurrent starts for
	// the same user conflict without serializing unrelated users on the
	// durable write below.
	t.sessions[userID] = us
	t.mu.Unlock()

	rec := model.SessionRecord{
		SessionID:     uuid.NewString(),
		UserID:        userID,
		SubjectID:     subjectID,
		Timezone:      timezone,
		Scopes:        append([]string(nil), scopes...),
		Start:         now,
		LastHeartbeat: now,
		State:         model.StateActive,
	}

	if err := t.store.Put(ctx, rec); err != nil {
		t.mu.Lock()
		delete(t.sessions, userID)
		t.mu.Unlock()
		return model.SessionRecord{}, fmt.Errorf("persist session start: %w", err)
	}

	us.rec = rec
	metrics.RecordSessionStarted()
	metrics.UpdateActiveSessions(t.count())
	t.log.Info(ctx, "session started",
		logger.String("userID", userID),
		logger.String("sessionID", rec.SessionID),
		logger.String("subjectID", subjectID),
		logger.String("timezone", timezone),
	)
	return rec.Clone(), nil
}

// RestoreAll rebuilds in-memory state from the durable store after a
// restart. Restoring is idempotent: elapsed time is a function of the
// persisted start instant, so nothing is lost or double counted.
func (t *Tracker) RestoreAll(ctx context.Context) (int, error) {
	records, err := t.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore sessions: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, err := t.restore(ctx, rec); err != nil {
			t.log.Warn(ctx, "skipping unrestorable session",
				logger.String("userID", rec.UserID),
				logger.Error(err),
			)
			continue
		}
		restored++
	}
	metrics.UpdateActiveSessions(t.count())
	return restored, nil
}

// Resume restores one user's session from the durable store.
func (t *Tracker) Resume(ctx context.Context, userID string) (model.SessionRecord, error) {
	rec, err := t.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.SessionRecord{}, ErrNoActiveSession
		}
		return model.SessionRecord{}, fmt.Errorf("resume session: %w", err)
	}
	restored, err := t.restore(ctx, rec)
	if err != nil {
		return model.SessionRecord{}, err
	}
	metrics.UpdateActiveSessions(t.count())
	return restored, nil
}

// restore installs a record, clamping implausible elapsed time first,
// and returns the record the tracker is actually running with.
func (t *Tracker) restore(ctx context.Context, rec model.SessionRecord) (model.SessionRecord, error) {
	now := t.clock.Now()

	elapsed := now.Sub(rec.Start)
	if elapsed < 0 || elapsed > t.maxResumeGap {
		// Clock skew: a negative or implausibly large gap. Non-fatal;
		// reset the start instant so the session continues from zero.
		t.log.Warn(ctx, "implausible elapsed time on resume, clamping to zero",
			logger.String("userID", rec.UserID),
			logger.Duration("elapsed", elapsed),
		)
		metrics.RecordClockSkewClamp()
		rec.Start = now
		rec.CreditedSeconds = 0
		if err := t.store.Put(ctx, rec); err != nil {
			return model.SessionRecord{}, fmt.Errorf("persist clamped session: %w", err)
		}
	}

	us := &userSession{rec: rec}
	t.mu.Lock()
	if live, exists := t.sessions[rec.UserID]; exists {
		t.mu.Unlock()
		// Already live in this process; resume is a no-op.
		live.mu.Lock()
		cur := live.rec.Clone()
		live.mu.Unlock()
		return cur, nil
	}
	t.sessions[rec.UserID] = us
	t.mu.Unlock()

	metrics.RecordSessionResumed()
	t.log.Info(ctx, "session resumed",
		logger.String("userID", rec.UserID),
		logger.String("sessionID", rec.SessionID),
		logger.Int64("creditedSeconds", rec.CreditedSeconds),
	)
	return rec.Clone(), nil
}

// Heartbeat recomputes elapsed time and offers the not-yet-credited
// whole seconds to the sink. This is the only place elapsed duration is
// derived while a session runs. Valid while Active or Interrupted.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) (int64, error) {
	us, ok := t.lookup(userID)
	if !ok {
		return 0, ErrNoActiveSession
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	if us.rec.UserID == "" {
		return 0, ErrNoActiveSession
	}

	now := t.clock.Now()
	elapsed := wholeSeconds(us.rec.Start, now)
	us.rec.LastHeartbeat = now
	metrics.RecordHeartbeat()

	delta := elapsed - us.rec.CreditedSeconds
	if delta < 1 {
		return elapsed, nil
	}

	seq := us.rec.HeartbeatSeq + 1
	hb := model.HeartbeatDelta{
		DeltaID:   model.DeltaID(us.rec.SessionID, seq),
		SessionID: us.rec.SessionID,
		UserID:    us.rec.UserID,
		SubjectID: us.rec.SubjectID,
		Seconds:   delta,
		Timezone:  us.rec.Timezone,
		Scopes:    append([]string(nil), us.rec.Scopes...),
		At:        now,
	}
	if err := t.sink.OnHeartbeat(ctx, hb); err != nil {
		// Not accepted (backpressure): the same seconds will be
		// re-offered next tick under the same delta id.
		t.log.Warn(ctx, "heartbeat delta rejected",
			logger.String("deltaID", hb.DeltaID),
			logger.Error(err),
		)
		return elapsed, nil
	}

	us.rec.CreditedSeconds = elapsed
	us.rec.HeartbeatSeq = seq
	if err := t.store.Put(ctx, us.rec); err != nil {
		// Non-fatal: the next successful Put repairs the mirror, and
		// completion reconciliation derives from the durable record.
		t.log.Warn(ctx, "heartbeat persist failed",
			logger.String("userID", userID),
			logger.Error(err),
		)
	}
	return elapsed, nil
}

// MarkInterrupted flags the session after an external focus-lost
// signal. Accrual continues; the flag and count are advisory. Calling
// it while already interrupted is a no-op.
func (t *Tracker) MarkInterrupted(ctx context.Context, userID string) error {
	return t.setFocus(ctx, userID, false)
}

// MarkResumedFocus clears the interruption flag after focus returns.
func (t *Tracker) MarkResumedFocus(ctx context.Context, userID string) error {
	return t.setFocus(ctx, userID, true)
}

func (t *Tracker) setFocus(ctx context.Context, userID string, focused bool) error {
	us, ok := t.lookup(userID)
	if !ok {
		return ErrNoActiveSession
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	if us.rec.UserID == "" {
		return ErrNoActiveSession
	}

	prev := us.rec
	switch {
	case focused && us.rec.State == model.StateInterrupted:
		us.rec.State = model.StateActive
	case !focused && us.rec.State == model.StateActive:
		us.rec.State = model.StateInterrupted
		us.rec.Interruptions++
		metrics.RecordSessionInterrupted()
	default:
		return nil
	}

	if err := t.store.Put(ctx, us.rec); err != nil {
		us.rec = prev
		return fmt.Errorf("persist focus change: %w", err)
	}
	if !focused {
		t.log.Info(ctx, "session interrupted",
			logger.String("userID", userID),
			logger.Int("interruptions", us.rec.Interruptions),
		)
	}
	return nil
}

// Complete finishes the session, emits the CompletedSession fact
// exactly once and clears the durable record. Valid from Active or
// Interrupted. The durable delete completes before the state machine
// returns to Idle; a failed delete is surfaced and the call can be
// retried without re-emitting.
func (t *Tracker) Complete(ctx context.Context, userID string) (model.CompletedSession, error) {
	us, ok := t.lookup(userID)
	if !ok {
		return model.CompletedSession{}, ErrNoActiveSession
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	if us.rec.UserID == "" {
		return model.CompletedSession{}, ErrNoActiveSession
	}

	if !us.completionEmitted {
		now := t.clock.Now()
		duration := wholeSeconds(us.rec.Start, now)
		cs := model.CompletedSession{
			SessionID:       us.rec.SessionID,
			UserID:          us.rec.UserID,
			SubjectID:       us.rec.SubjectID,
			Start:           us.rec.Start,
			End:             now,
			DurationSeconds: duration,
			Interruptions:   us.rec.Interruptions,
			CreditedSeconds: us.rec.CreditedSeconds,
		}
		if err := t.sink.OnSessionComplete(ctx, cs, us.rec.Timezone, us.rec.Scopes); err != nil {
			return model.CompletedSession{}, fmt.Errorf("emit completed session: %w", err)
		}
		us.completionEmitted = true
		us.completed = cs
		metrics.RecordSessionCompleted()
		metrics.RecordSessionDuration(duration)
		t.log.Info(ctx, "session completed",
			logger.String("userID", userID),
			logger.String("sessionID", cs.SessionID),
			logger.Int64("durationSeconds", duration),
			logger.Int("interruptions", cs.Interruptions),
		)
	}

	if err := t.store.Delete(ctx, userID); err != nil {
		return model.CompletedSession{}, fmt.Errorf("clear session record: %w", err)
	}

	cs := us.completed
	us.rec = model.SessionRecord{}

	t.mu.Lock()
	delete(t.sessions, userID)
	t.mu.Unlock()
	metrics.UpdateActiveSessions(t.count())
	return cs, nil
}

// Discard drops the session without emitting a completion fact.
func (t *Tracker) Discard(ctx context.Context, userID string) error {
	us, ok := t.lookup(userID)
	if !ok {
		return ErrNoActiveSession
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	if us.rec.UserID == "" {
		return ErrNoActiveSession
	}

	if err := t.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	us.rec = model.SessionRecord{}

	t.mu.Lock()
	delete(t.sessions, userID)
	t.mu.Unlock()
	metrics.UpdateActiveSessions(t.count())
	return nil
}

// Elapsed returns the live elapsed whole seconds for display.
func (t *Tracker) Elapsed(userID string) (int64, error) {
	us, ok := t.lookup(userID)
	if !ok {
		return 0, ErrNoActiveSession
	}
	us.mu.Lock()
	defer us.mu.Unlock()
	if us.rec.UserID == "" {
		return 0, ErrNoActiveSession
	}
	return wholeSeconds(us.rec.Start, t.clock.Now()), nil
}

// Snapshot returns a copy of the user's current record.
func (t *Tracker) Snapshot(userID string) (model.SessionRecord, error) {
	us, ok := t.lookup(userID)
	if !ok {
		return model.SessionRecord{}, ErrNoActiveSession
	}
	us.mu.Lock()
	defer us.mu.Unlock()
	if us.rec.UserID == "" {
		return model.SessionRecord{}, ErrNoActiveSession
	}
	return us.rec.Clone(), nil
}

// ActiveUserIDs lists users with a live session, for the runner.
func (t *Tracker) ActiveUserIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		out = append(out, id)
	}
	return out
}

func (t *Tracker) lookup(userID string) (*userSession, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	us, ok := t.sessions[userID]
	return us, ok
}

func (t *Tracker) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// wholeSeconds floors the interval to whole seconds, clamped to >= 0.
func wholeSeconds(from, to time.Time) int64 {
	sec := int64(to.Sub(from) / time.Second)
	if sec < 0 {
		return 0
	}
	return sec
}
