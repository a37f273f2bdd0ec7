package service

import "errors"

// Sentinel kinds for aggregator errors.
var (
	// ErrBackpressure means the delta queue refused the entry; the
	// producer re-offers the same delta on its next tick.
	ErrBackpressure = errors.New("delta queue full")

	// ErrNotStarted means an operation reached the service before
	// Start or after Stop.
	ErrNotStarted = errors.New("service not started")
)
