package daykey

import "errors"

// Sentinel kinds for day key errors.
var (
	ErrUnknownTimezone = errors.New("unknown timezone")
)
