// Package snapshot persists computed profit reports so repeat requests for
// closed date ranges skip the upstream fan-out.
package snapshot

import (
	"time"

	"github.com/truemargin/truemargin/internal/shared"
)

// MaxAge is how far back a range may start and still be cached, and also how
// long a stored snapshot survives before eviction.
const MaxAge = 90 * 24 * time.Hour

// Snapshot is one cached report keyed by store and range.
type Snapshot struct {
	StoreID   int64
	RangeKey  string
	From      time.Time
	To        time.Time
	Payload   []byte
	CreatedAt time.Time
}

// Fresh reports whether the snapshot was computed within freshFor of now.
func (s *Snapshot) Fresh(now time.Time, freshFor time.Duration) bool {
	return now.Sub(s.CreatedAt) < freshFor
}

// Cacheable reports whether a range may be served from and written to the
// snapshot store. Only fully closed ranges qualify: the range must end before
// today (store-local "today" is approximated by UTC here since ranges are
// calendar days), and must start within MaxAge so stale windows never pin
// storage.
func Cacheable(rng shared.DateRange, now time.Time) bool {
	today := shared.Midnight(now)
	if !rng.To.Before(today) {
		return false
	}
	return !rng.From.Before(today.Add(-MaxAge))
}
