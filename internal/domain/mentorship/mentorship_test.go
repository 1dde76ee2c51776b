package mentorship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

func mondayMentor() *Availability {
	a := &Availability{
		MentorID: "mentor-1",
		WeeklySchedule: []DaySchedule{
			{Day: "Monday", TimeSlots: []TimeSlot{
				{StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
				{StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
				{StartTime: "11:00", EndTime: "12:00", IsAvailable: false},
			}},
		},
	}
	a.Normalize()
	return a
}

func TestSlotsFor_WeeklyTemplate(t *testing.T) {
	a := mondayMentor()
	require.NoError(t, a.Validate())

	slots, err := a.SlotsFor("2026-10-19") // Monday
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "10:00", slots[1].StartTime)

	slots, err = a.SlotsFor("2026-10-20") // Tuesday
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsFor_UnavailableExceptionReturnsEmpty(t *testing.T) {
	a := mondayMentor()
	a.Exceptions = []Exception{{Date: "2026-10-19", IsAvailable: false}}

	slots, err := a.SlotsFor("2026-10-19")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	slots, err = a.SlotsFor("2026-10-26")
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestSlotsFor_ExceptionReplacesTemplate(t *testing.T) {
	a := mondayMentor()
	a.Exceptions = []Exception{{
		Date:        "2026-10-19",
		IsAvailable: true,
		TimeSlots:   []TimeSlot{{StartTime: "14:00", EndTime: "15:00", IsAvailable: true}},
	}}

	slots, err := a.SlotsFor("2026-10-19")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "14:00", slots[0].StartTime)
}

func TestSlotsFor_BadDate(t *testing.T) {
	_, err := mondayMentor().SlotsFor("19/10/2026")
	assert.True(t, shared.IsValidation(err))
}

func TestWithoutBooked_ExactStartMatch(t *testing.T) {
	slots := []TimeSlot{
		{StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
		{StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
	}
	booked := []*Session{
		{StartTime: "09:00", Status: StatusConfirmed},
		{StartTime: "10:00", Status: StatusCancelled},
		{StartTime: "09:30", Status: StatusScheduled},
	}
	got := WithoutBooked(slots, booked)
	require.Len(t, got, 1)
	assert.Equal(t, "10:00", got[0].StartTime)
}

func TestAvailabilityValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *Availability)
	}{
		{"missing mentor", func(a *Availability) { a.MentorID = "" }},
		{"bad weekday", func(a *Availability) { a.WeeklySchedule[0].Day = "funday" }},
		{"bad clock", func(a *Availability) { a.WeeklySchedule[0].TimeSlots[0].StartTime = "9am" }},
		{"inverted slot", func(a *Availability) { a.WeeklySchedule[0].TimeSlots[0].EndTime = "08:00" }},
		{"bad exception date", func(a *Availability) { a.Exceptions = []Exception{{Date: "tomorrow"}} }},
		{"bad timezone", func(a *Availability) { a.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mondayMentor()
			tt.mutate(a)
			assert.True(t, shared.IsValidation(a.Validate()))
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	a := mondayMentor()
	assert.Equal(t, "UTC", a.Timezone)
	assert.Equal(t, DefaultSessionDuration, a.SessionDuration)
	assert.Equal(t, DefaultMaxSessionsPerDay, a.MaxSessionsPerDay)
	assert.Equal(t, "monday", a.WeeklySchedule[0].Day)
}

func TestSessionLifecycle(t *testing.T) {
	now := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	s, err := NewSession("s1", "mentor-1", "mentee-1", at, 0, "Go", mondayMentor(), now)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", s.SlotDate)
	assert.Equal(t, "09:00", s.StartTime)
	assert.Equal(t, DefaultSessionDuration, s.Duration)
	assert.Equal(t, StatusScheduled, s.Status)

	require.NoError(t, s.TransitionTo(StatusConfirmed, now))
	require.NoError(t, s.Reschedule(at.Add(time.Hour), "clash", time.UTC, now))
	assert.Equal(t, "10:00", s.StartTime)
	assert.Equal(t, StatusScheduled, s.Status)
	require.Len(t, s.RescheduleHistory, 1)
	assert.Equal(t, at, s.RescheduleHistory[0].PreviousDate)

	require.NoError(t, s.TransitionTo(StatusCompleted, now))
	err = s.TransitionTo(StatusCancelled, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.True(t, shared.IsConflict(err))
	assert.ErrorIs(t, s.Reschedule(at, "", time.UTC, now), ErrInvalidTransition)
}

func TestNewSession_SelfMentoring(t *testing.T) {
	_, err := NewSession("s1", "u1", "u1", time.Now(), 30, "", mondayMentor(), time.Now())
	assert.ErrorIs(t, err, ErrSelfMentoring)
}
