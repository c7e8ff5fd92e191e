package commission

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// ParsePeriod parses YYYY-MM into the first instant of that month in UTC.
func ParsePeriod(s string) (time.Time, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return t.UTC(), nil
}

// PreviousPeriod is the month before the one containing now, in UTC.
func PreviousPeriod(now time.Time) string {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format(periodLayout)
}

// monthsBetween counts whole calendar months from a to b.
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// activeInPeriod reports whether a referral completed at completedAt still earns under a
// recurring plan of n months in the period starting at period.
func activeInPeriod(completedAt, period time.Time, n int) bool {
	m := monthsBetween(completedAt.UTC(), period)
	return m >= 0 && m < n
}
