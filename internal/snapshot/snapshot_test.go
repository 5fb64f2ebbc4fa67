package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truemargin/truemargin/internal/shared"
)

var now = time.Date(2025, 4, 15, 10, 30, 0, 0, time.UTC)

func mustRange(t *testing.T, from, to string) shared.DateRange {
	t.Helper()
	rng, err := shared.ParseDateRange(from, to)
	require.NoError(t, err)
	return rng
}

func TestCacheable(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"closed range last month", "2025-03-01", "2025-03-31", true},
		{"ends yesterday", "2025-04-01", "2025-04-14", true},
		{"includes today", "2025-04-01", "2025-04-15", false},
		{"extends into the future", "2025-04-10", "2025-04-20", false},
		{"starts exactly at the age limit", "2025-01-15", "2025-01-20", true},
		{"starts one day too old", "2025-01-14", "2025-01-20", false},
		{"entirely ancient", "2024-06-01", "2024-06-30", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Cacheable(mustRange(t, tc.from, tc.to), now))
		})
	}
}

func TestCacheableIgnoresTimeOfDay(t *testing.T) {
	rng := mustRange(t, "2025-04-01", "2025-04-14")
	require.Equal(t,
		Cacheable(rng, time.Date(2025, 4, 15, 0, 0, 1, 0, time.UTC)),
		Cacheable(rng, time.Date(2025, 4, 15, 23, 59, 59, 0, time.UTC)))
}

func TestFresh(t *testing.T) {
	snap := &Snapshot{CreatedAt: now.Add(-30 * time.Minute)}
	require.True(t, snap.Fresh(now, time.Hour))
	require.False(t, snap.Fresh(now.Add(time.Hour), time.Hour))
}
