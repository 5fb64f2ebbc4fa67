package shared

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of store-local calendar days. From and To
// hold midnight UTC of the respective dates; the timezone shift is applied
// only when deriving the UTC window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange normalises both bounds to midnight UTC.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: Midnight(from), To: Midnight(to)}
}

// ParseDateRange builds a range from two YYYY-MM-DD strings.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(dateLayout, from)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse from date: %w", err)
	}
	t, err := time.Parse(dateLayout, to)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse to date: %w", err)
	}
	if t.Before(f) {
		return DateRange{}, fmt.Errorf("to date %s precedes from date %s", to, from)
	}
	return DateRange{From: f, To: t}, nil
}

// Key renders the canonical cache key fragment for the range.
func (r DateRange) Key() string {
	return r.From.Format(dateLayout) + "_" + r.To.Format(dateLayout)
}

// Window is an absolute UTC time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// UTCWindow converts the store-local calendar range into an absolute UTC
// window. The range covers [From 00:00:00, To 23:59:59] in store-local time;
// offsetMinutes is the store's offset from UTC, so local wall-clock times map
// to UTC by subtracting the offset.
func (r DateRange) UTCWindow(offsetMinutes int) Window {
	shift := time.Duration(offsetMinutes) * time.Minute
	start := r.From.Add(-shift)
	end := r.To.Add(24*time.Hour - time.Second).Add(-shift)
	return Window{Start: start, End: end}
}

// Midnight truncates t to midnight UTC of its calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Yesterday returns the single-day range for the day before now.
func Yesterday(now time.Time) DateRange {
	y := Midnight(now).AddDate(0, 0, -1)
	return DateRange{From: y, To: y}
}

// LastNDays returns the n-day range ending yesterday. Today is excluded so
// the range stays cacheable.
func LastNDays(now time.Time, n int) DateRange {
	to := Midnight(now).AddDate(0, 0, -1)
	from := Midnight(now).AddDate(0, 0, -n)
	return DateRange{From: from, To: to}
}
