// Package types contains common types used across the application
package types

// Entry represents one leaderboard row for a (scope, day) shard.
type Entry struct {
	Rank    int    `json:"rank"`
	UserID  string `json:"user_id"`
	Seconds int64  `json:"seconds"`
}
