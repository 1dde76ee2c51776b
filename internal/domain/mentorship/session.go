package mentorship

import (
	"fmt"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a session.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates s.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", shared.ValidationError("mentorship", "ParseStatus", "unknown session status %q", s)
}

// IsActive reports whether the session still holds its slot.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// ActiveStatuses are the statuses that hold a slot.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCompleted, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSlotAlreadyBooked: another active session holds (mentor, date, start).
	ErrSlotAlreadyBooked = shared.NewDomainError("mentorship", "Schedule", shared.ErrConflict, "slot already booked")

	// ErrSlotUnavailable: the requested start is not an open slot that day.
	ErrSlotUnavailable = shared.NewDomainError("mentorship", "Schedule", shared.ErrConflict, "slot is not available")

	// ErrDailyLimitReached: maxSessionsPerDay active sessions exist.
	ErrDailyLimitReached = shared.NewDomainError("mentorship", "Schedule", shared.ErrConflict, "mentor reached the daily session limit")

	// ErrInvalidTransition: status change not allowed from the current state.
	ErrInvalidTransition = shared.NewDomainError("mentorship", "UpdateStatus", shared.ErrConflict, "invalid status transition")

	// ErrSessionMoved: the session was rescheduled after it was read.
	ErrSessionMoved = shared.NewDomainError("mentorship", "UpdateSession", shared.ErrConflict, "session was rescheduled concurrently")

	// ErrSessionNotFound: no session with the given id.
	ErrSessionNotFound = shared.NewDomainError("mentorship", "GetSession", shared.ErrNotFound, "session not found")

	// ErrSelfMentoring: mentor and mentee are the same user.
	ErrSelfMentoring = shared.NewDomainError("mentorship", "Schedule", shared.ErrValidation, "mentor cannot book a session with themselves")
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

// RescheduleEntry records one move of a session.
type RescheduleEntry struct {
	PreviousDate  time.Time `json:"previousDate"`
	NewDate       time.Time `json:"newDate"`
	Reason        string    `json:"reason,omitempty"`
	RescheduledAt time.Time `json:"rescheduledAt"`
}

// Session is a booked mentorship meeting.
//
// SlotDate and StartTime are ScheduledDate expressed in the mentor's
// timezone; they form the slot key used for conflict detection.
type Session struct {
	ID                string            `json:"id"`
	MentorID          string            `json:"mentorId"`
	MenteeID          string            `json:"menteeId"`
	ScheduledDate     time.Time         `json:"scheduledDate"`
	SlotDate          string            `json:"slotDate"`
	StartTime         string            `json:"startTime"`
	Duration          int               `json:"duration"`
	Status            Status            `json:"status"`
	Topic             string            `json:"topic,omitempty"`
	RescheduleHistory []RescheduleEntry `json:"rescheduleHistory"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// SlotKey splits an instant into (date, HH:MM) in loc.
func SlotKey(at time.Time, loc *time.Location) (date, start string) {
	local := at.In(loc)
	return local.Format(timeutil.DateLayout), local.Format(timeutil.ClockLayout)
}

// NewSession builds a scheduled session. Duration falls back to the
// mentor's default session length.
func NewSession(id, mentorID, menteeID string, at time.Time, duration int, topic string, av *Availability, now time.Time) (*Session, error) {
	if mentorID == menteeID {
		return nil, ErrSelfMentoring
	}
	if duration <= 0 {
		duration = av.SessionDuration
	}
	date, start := SlotKey(at, av.Location())
	return &Session{
		ID:                id,
		MentorID:          mentorID,
		MenteeID:          menteeID,
		ScheduledDate:     at.UTC(),
		SlotDate:          date,
		StartTime:         start,
		Duration:          duration,
		Status:            StatusScheduled,
		Topic:             topic,
		RescheduleHistory: []RescheduleEntry{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// TransitionTo moves the session to next.
func (s *Session) TransitionTo(next Status, now time.Time) error {
	if !CanTransition(s.Status, next) {
		return shared.WrapError("mentorship", "UpdateStatus", shared.ErrConflict,
			fmt.Sprintf("cannot move session from %s to %s", s.Status, next), ErrInvalidTransition)
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// Reschedule moves an active session to a new instant and records history.
func (s *Session) Reschedule(at time.Time, reason string, loc *time.Location, now time.Time) error {
	if !s.Status.IsActive() {
		return shared.WrapError("mentorship", "Reschedule", shared.ErrConflict,
			fmt.Sprintf("cannot reschedule a %s session", s.Status), ErrInvalidTransition)
	}
	s.RescheduleHistory = append(s.RescheduleHistory, RescheduleEntry{
		PreviousDate:  s.ScheduledDate,
		NewDate:       at.UTC(),
		Reason:        reason,
		RescheduledAt: now,
	})
	s.ScheduledDate = at.UTC()
	s.SlotDate, s.StartTime = SlotKey(at, loc)
	s.Status = StatusScheduled
	s.UpdatedAt = now
	return nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.RescheduleHistory = append([]RescheduleEntry(nil), s.RescheduleHistory...)
	return &c
}
