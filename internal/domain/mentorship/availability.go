// Package mentorship models mentor availability and booked sessions.
//
// A mentor publishes a weekly template plus per-date exceptions. Slots are
// identified by (date, startTime) in the mentor's timezone; a slot is free
// when no scheduled or confirmed session starts at exactly that time.
package mentorship

import (
	"sort"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// Defaults applied by Availability.Normalize.
const (
	DefaultSessionDuration   = 60
	DefaultMaxSessionsPerDay = 8
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TimeSlot is a bookable window in HH:MM local time.
type TimeSlot struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

// Validate checks both clocks and that start precedes end.
func (s TimeSlot) Validate() error {
	start, err := timeutil.ParseClock(s.StartTime)
	if err != nil {
		return shared.ValidationError("mentorship", "TimeSlot", "%v", err)
	}
	end, err := timeutil.ParseClock(s.EndTime)
	if err != nil {
		return shared.ValidationError("mentorship", "TimeSlot", "%v", err)
	}
	if end <= start {
		return shared.ValidationError("mentorship", "TimeSlot", "slot %s-%s ends before it starts", s.StartTime, s.EndTime)
	}
	return nil
}

// DaySchedule is the template for one weekday.
type DaySchedule struct {
	Day       string     `json:"day"` // monday..sunday
	TimeSlots []TimeSlot `json:"timeSlots"`
}

// Exception overrides the template for one calendar date.
type Exception struct {
	Date        string     `json:"date"` // YYYY-MM-DD
	IsAvailable bool       `json:"isAvailable"`
	TimeSlots   []TimeSlot `json:"timeSlots,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// AVAILABILITY
// ══════════════════════════════════════════════════════════════════════════════

// Availability is the single availability document of a mentor.
type Availability struct {
	MentorID          string        `json:"mentorId"`
	WeeklySchedule    []DaySchedule `json:"weeklySchedule"`
	Exceptions        []Exception   `json:"exceptions"`
	Timezone          string        `json:"timezone"`
	MaxSessionsPerDay int           `json:"maxSessionsPerDay"`
	SessionDuration   int           `json:"sessionDuration"` // minutes
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Normalize fills defaults and lowercases weekday names.
func (a *Availability) Normalize() {
	if a.Timezone == "" {
		a.Timezone = "UTC"
	}
	if a.SessionDuration <= 0 {
		a.SessionDuration = DefaultSessionDuration
	}
	if a.MaxSessionsPerDay <= 0 {
		a.MaxSessionsPerDay = DefaultMaxSessionsPerDay
	}
	for i := range a.WeeklySchedule {
		if d, ok := timeutil.ParseWeekday(a.WeeklySchedule[i].Day); ok {
			a.WeeklySchedule[i].Day = timeutil.WeekdayName(d)
		}
	}
}

// Validate checks weekday names, dates, slots and the timezone. Call it
// after Normalize.
func (a *Availability) Validate() error {
	if a.MentorID == "" {
		return shared.ValidationError("mentorship", "Validate", "mentor id is required")
	}
	if _, err := timeutil.LoadLocation(a.Timezone); err != nil {
		return shared.ValidationError("mentorship", "Validate", "unknown timezone %q", a.Timezone)
	}
	seenDays := make(map[string]bool, len(a.WeeklySchedule))
	for _, d := range a.WeeklySchedule {
		if _, ok := timeutil.ParseWeekday(d.Day); !ok {
			return shared.ValidationError("mentorship", "Validate", "unknown weekday %q", d.Day)
		}
		if seenDays[d.Day] {
			return shared.ValidationError("mentorship", "Validate", "weekday %q listed twice", d.Day)
		}
		seenDays[d.Day] = true
		if err := validateSlots(d.TimeSlots); err != nil {
			return err
		}
	}
	seenDates := make(map[string]bool, len(a.Exceptions))
	for _, e := range a.Exceptions {
		if _, err := timeutil.ParseDate(e.Date, time.UTC); err != nil {
			return shared.ValidationError("mentorship", "Validate", "%v", err)
		}
		if seenDates[e.Date] {
			return shared.ValidationError("mentorship", "Validate", "exception for %s listed twice", e.Date)
		}
		seenDates[e.Date] = true
		if err := validateSlots(e.TimeSlots); err != nil {
			return err
		}
	}
	return nil
}

func validateSlots(slots []TimeSlot) error {
	starts := make(map[string]bool, len(slots))
	for _, s := range slots {
		if err := s.Validate(); err != nil {
			return err
		}
		if starts[s.StartTime] {
			return shared.ValidationError("mentorship", "Validate", "two slots start at %s", s.StartTime)
		}
		starts[s.StartTime] = true
	}
	return nil
}

// Location returns the mentor's timezone, UTC if it cannot be loaded.
func (a *Availability) Location() *time.Location {
	loc, err := timeutil.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExceptionFor returns the exception for date, if any.
func (a *Availability) ExceptionFor(date string) (Exception, bool) {
	for _, e := range a.Exceptions {
		if e.Date == date {
			return e, true
		}
	}
	return Exception{}, false
}

// SlotsFor resolves the open slots of a date before bookings are applied.
// An exception for the date replaces the weekday template; an exception
// with IsAvailable=false yields no slots. Slots marked unavailable are
// dropped. The result is sorted by start time.
func (a *Availability) SlotsFor(date string) ([]TimeSlot, error) {
	day, err := timeutil.ParseDate(date, time.UTC)
	if err != nil {
		return nil, shared.ValidationError("mentorship", "SlotsFor", "%v", err)
	}

	var source []TimeSlot
	if ex, ok := a.ExceptionFor(date); ok {
		if !ex.IsAvailable {
			return []TimeSlot{}, nil
		}
		source = ex.TimeSlots
	} else {
		weekday := timeutil.WeekdayName(day.Weekday())
		for _, d := range a.WeeklySchedule {
			if d.Day == weekday {
				source = d.TimeSlots
				break
			}
		}
	}

	out := make([]TimeSlot, 0, len(source))
	for _, s := range source {
		if s.IsAvailable {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

// WithoutBooked removes slots whose start time equals a booked start time.
// The match is exact: a session of non-standard length does not hide the
// slots it overlaps.
func WithoutBooked(slots []TimeSlot, booked []*Session) []TimeSlot {
	taken := make(map[string]bool, len(booked))
	for _, s := range booked {
		if s.Status.IsActive() {
			taken[s.StartTime] = true
		}
	}
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if !taken[s.StartTime] {
			out = append(out, s)
		}
	}
	return out
}

// FindSlot returns the slot starting at startTime.
func FindSlot(slots []TimeSlot, startTime string) (TimeSlot, bool) {
	for _, s := range slots {
		if s.StartTime == startTime {
			return s, true
		}
	}
	return TimeSlot{}, false
}
