// Package daykey derives calendar-day shard keys from timezones and
// instants. The function is pure: two processes given the same zone and
// instant always agree on the key, which is what makes per-user "today"
// globally consistent without a coordinated midnight reset.
package daykey

import (
	"sync"
	"time"
)

// Format is the externally observable shard key layout (YYYY-MM-DD).
const Format = "2006-01-02"

// Key projects the instant into loc and returns its calendar date.
func Key(loc *time.Location, at time.Time) string {
	return at.In(loc).Format(Format)
}

// zone cache: LoadLocation reads the tzdata on every call otherwise.
var zones sync.Map // name -> *time.Location

// Zone resolves an IANA timezone name, falling back through the cache.
// An empty name means UTC. Returns ErrUnknownTimezone for names the
// tzdata does not know.
func Zone(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	if cached, ok := zones.Load(name); ok {
		return cached.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrUnknownTimezone
	}
	zones.Store(name, loc)
	return loc, nil
}

// KeyForZone resolves the zone by name and returns the key for at.
func KeyForZone(tz string, at time.Time) (string, error) {
	loc, err := Zone(tz)
	if err != nil {
		return "", err
	}
	return Key(loc, at), nil
}

// Parse returns the midnight instant of a day key within loc. Useful
// for reasoning about shard boundaries in tests and sweeps.
func Parse(loc *time.Location, key string) (time.Time, error) {
	return time.ParseInLocation(Format, key, loc)
}
