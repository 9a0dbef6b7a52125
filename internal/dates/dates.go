// Package dates holds the calendar arithmetic shared by the scheduling engine.
// Everything operates in UTC.
package dates

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Day is the length of one whole day.
const Day = 24 * time.Hour

// AddDays returns t advanced by n whole days in UTC. The time of day is kept.
func AddDays(t time.Time, n int) time.Time {
	return t.UTC().AddDate(0, 0, n)
}

// DayDiff returns (a-b)/24h rounded to the nearest day, with halves rounded
// up toward positive infinity, so -0.5 gives 0 and -1.5 gives -1. ok is
// false when either side is nil.
func DayDiff(a, b *time.Time) (days int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	d := a.Sub(*b)
	return int(math.Floor(float64(d)/float64(Day) + 0.5)), true
}

// Shift returns a pointer to AddDays(*t, n), or nil when t is nil.
func Shift(t *time.Time, n int) *time.Time {
	if t == nil {
		return nil
	}
	s := AddDays(*t, n)
	return &s
}

// ParseTimestamp accepts RFC3339 (with or without fractional seconds) or a
// bare YYYY-MM-DD date, which is read as midnight UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("dates: empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("dates: invalid timestamp %q (want RFC3339 or YYYY-MM-DD)", s)
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
