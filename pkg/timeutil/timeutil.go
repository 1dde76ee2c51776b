// Package timeutil provides calendar helpers shared by streaks, leaderboard
// periods and mentor scheduling. Calendar math is done in UTC unless a
// location is passed explicitly.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts used across the API.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
	ClockLayout = "15:04"
)

// Clock abstracts time.Now for tests.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns the first instant of t's month in UTC.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthKey returns the YYYY-MM bucket key for t in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// DaysBetween returns the signed number of UTC calendar days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1.UTC())
	b := StartOfDay(t2.UTC())
	return int(b.Sub(a).Hours() / 24)
}

// IsSameDay reports whether both instants fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	return DaysBetween(t1, t2) == 0
}

// ParseDate parses a YYYY-MM-DD string in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}

// ParseClock validates an HH:MM string and returns minutes since midnight.
func ParseClock(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return h*60 + m, nil
}

// WeekdayName returns the lowercase English weekday name.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// ParseWeekday parses "monday".."sunday" (case-insensitive).
func ParseWeekday(value string) (time.Weekday, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if WeekdayName(d) == v {
			return d, true
		}
	}
	return time.Sunday, false
}

// LoadLocation resolves an IANA zone name, empty meaning UTC.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
