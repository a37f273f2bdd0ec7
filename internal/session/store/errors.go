package store

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrNotFound = errors.New("session record not found")
	ErrIO       = errors.New("session store write failed")
)
