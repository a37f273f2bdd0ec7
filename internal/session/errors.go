package session

import "errors"

// Sentinel kinds for session lifecycle errors.
var (
	// ErrSessionExists means the user already has an active session.
	ErrSessionExists = errors.New("active session already exists")

	// ErrNoActiveSession means the operation needs a session that is
	// not there.
	ErrNoActiveSession = errors.New("no active session")
)
