// Package clock abstracts the time source so session and leaderboard
// logic can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the wall-clock "now". Elapsed time is always computed
// as a difference of two Now() readings, never by counting ticks.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the real time package.
type System struct{}

// Now returns the current wall-clock time.
func (System) Now() time.Time { return time.Now() }

// New returns the real system clock.
func New() Clock { return System{} }

// Fake is a manually advanced Clock for tests. Safe for concurrent use.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a fake clock frozen at the given instant.
func NewFake(at time.Time) *Fake {
	return &Fake{now: at}
}

// Now returns the fake's current instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set jumps the fake clock to the given instant. It may move backwards;
// callers exercising clock-skew paths rely on that.
func (f *Fake) Set(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = at
}
