package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDateRange(t *testing.T) {
	rng, err := ParseDateRange("2025-03-01", "2025-03-31")
	require.NoError(t, err)
	require.Equal(t, "2025-03-01_2025-03-31", rng.Key())

	_, err = ParseDateRange("2025-03-31", "2025-03-01")
	require.Error(t, err, "reversed bounds must be rejected")

	_, err = ParseDateRange("yesterday", "2025-03-01")
	require.Error(t, err)

	rng, err = ParseDateRange("2025-03-05", "2025-03-05")
	require.NoError(t, err, "single-day ranges are valid")
	require.Equal(t, rng.From, rng.To)
}

func TestUTCWindow(t *testing.T) {
	rng, err := ParseDateRange("2025-03-01", "2025-03-31")
	require.NoError(t, err)

	utc := rng.UTCWindow(0)
	require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), utc.Start)
	require.Equal(t, time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), utc.End)

	// A store two hours east of UTC starts its day two hours earlier in UTC.
	east := rng.UTCWindow(120)
	require.Equal(t, time.Date(2025, 2, 28, 22, 0, 0, 0, time.UTC), east.Start)
	require.Equal(t, time.Date(2025, 3, 31, 21, 59, 59, 0, time.UTC), east.End)

	// A store west of UTC shifts the other way.
	west := rng.UTCWindow(-300)
	require.Equal(t, time.Date(2025, 3, 1, 5, 0, 0, 0, time.UTC), west.Start)
}

func TestWindowContains(t *testing.T) {
	w := Window{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
	}
	require.True(t, w.Contains(w.Start))
	require.True(t, w.Contains(w.End))
	require.False(t, w.Contains(w.Start.Add(-time.Second)))
	require.False(t, w.Contains(w.End.Add(time.Second)))
}

func TestYesterdayAndLastNDays(t *testing.T) {
	now := time.Date(2025, 4, 15, 13, 45, 0, 0, time.UTC)

	y := Yesterday(now)
	require.Equal(t, "2025-04-14_2025-04-14", y.Key())

	week := LastNDays(now, 7)
	require.Equal(t, "2025-04-08_2025-04-14", week.Key())

	month := LastNDays(now, 30)
	require.Equal(t, "2025-03-16_2025-04-14", month.Key())
}

func TestMidnight(t *testing.T) {
	loc := time.FixedZone("east", 2*3600)
	ts := time.Date(2025, 4, 15, 1, 30, 0, 0, loc)
	// 01:30 +02:00 is still April 14 in UTC.
	require.Equal(t, time.Date(2025, 4, 14, 0, 0, 0, 0, time.UTC), Midnight(ts))
}
