package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule runs a job at a fixed interval, optionally shifted by
// a fixed offset for the first run.
type IntervalSchedule struct {
	Interval time.Duration

	// FirstDelay replaces Interval for the first Next call when non-zero.
	FirstDelay time.Duration

	started bool
}

// NewIntervalSchedule creates an IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	if !s.started {
		s.started = true
		if s.FirstDelay > 0 {
			return t.Add(s.FirstDelay)
		}
	}
	return t.Add(s.Interval)
}

// String returns the schedule in "@every" notation.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
