package repository

import "errors"

// Sentinel kinds for leaderboard store errors.
var (
	ErrNotFound     = errors.New("user not found on leaderboard")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrSnapshotIO   = errors.New("leaderboard snapshot io failure")
)
