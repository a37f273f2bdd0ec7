// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// SessionState enumerates the focus session lifecycle.
type SessionState string

const (
	// StateActive means the user is studying and accruing time.
	StateActive SessionState = "active"
	// StateInterrupted means a focus-lost signal fired. Accrual
	// continues; the flag is advisory metadata for UI and analytics.
	StateInterrupted SessionState = "interrupted"
)

// SessionRecord is the durable state of one user's focus session.
// At most one active record exists per user. The record is owned by
// the session tracker and mirrored into the session store; nothing
// else mutates it.
type SessionRecord struct {
	SessionID     string       `json:"session_id"`
	UserID        string       `json:"user_id"`
	SubjectID     string       `json:"subject_id"`
	Timezone      string       `json:"timezone"`
	Scopes        []string     `json:"scopes"`
	Start         time.Time    `json:"start"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	State         SessionState `json:"state"`

	// Interruptions counts focus-lost signals during this session.
	Interruptions int `json:"interruptions"`

	// CreditedSeconds is the number of whole seconds already emitted
	// to the leaderboard as heartbeat deltas.
	CreditedSeconds int64 `json:"credited_seconds"`

	// HeartbeatSeq increases by one per emitted delta; together with
	// SessionID it forms the monotonic delta id used for idempotency.
	HeartbeatSeq uint64 `json:"heartbeat_seq"`
}

// Clone returns a deep copy so callers never alias the tracker's state.
func (r SessionRecord) Clone() SessionRecord {
	cp := r
	cp.Scopes = append([]string(nil), r.Scopes...)
	return cp
}

// CompletedSession is the immutable fact emitted exactly once when a
// session finishes.
type CompletedSession struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	SubjectID       string    `json:"subject_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds int64     `json:"duration_seconds"`
	Interruptions   int       `json:"interruptions"`

	// CreditedSeconds is how much of the duration heartbeat deltas
	// already delivered; the aggregator credits the remainder to the
	// completion day so day totals cover missed heartbeats.
	CreditedSeconds int64 `json:"credited_seconds"`
}

// HeartbeatDelta carries an incremental study-time contribution from a
// live session to the leaderboard.
type HeartbeatDelta struct {
	// DeltaID is "<sessionID>#<seq>"; it is the idempotency key the
	// aggregator dedupes retried deliveries on.
	DeltaID   string
	SessionID string
	UserID    string
	SubjectID string

	// Seconds is the not-yet-credited elapsed time, always >= 1.
	Seconds int64

	// Timezone and Scopes are captured at session start so shard
	// addressing needs no external lookup.
	Timezone string
	Scopes   []string

	// At is the heartbeat instant; the delta lands in the calendar day
	// of this instant in the user's timezone.
	At time.Time
}

// DeltaID formats the idempotency key for a session's nth delta.
func DeltaID(sessionID string, seq uint64) string {
	return fmt.Sprintf("%s#%d", sessionID, seq)
}
