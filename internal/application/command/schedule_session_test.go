package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// monday is the Monday after now.
var monday = time.Date(2026, time.October, 26, 0, 0, 0, 0, time.UTC)

func at(clock string) time.Time {
	d, _ := time.Parse("15:04", clock)
	return monday.Add(time.Duration(d.Hour())*time.Hour + time.Duration(d.Minute())*time.Minute)
}

func (f *fixture) publishAvailability(t *testing.T, maxPerDay int) {
	t.Helper()
	f.addUser(t, "m1", "mentor")
	f.addUser(t, "s1", "student")
	f.addUser(t, "s2", "student")

	_, err := NewSetAvailabilityHandler(f.sessions).Handle(context.Background(), SetAvailabilityCommand{
		MentorID: "m1",
		WeeklySchedule: []mentorship.DaySchedule{{
			Day: "Monday",
			TimeSlots: []mentorship.TimeSlot{
				{StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
				{StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
			},
		}},
		MaxSessionsPerDay: maxPerDay,
	})
	require.NoError(t, err)
}

func TestScheduleSession_Books(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)

	session, err := NewScheduleSessionHandler(f.sessions).Handle(ctx, ScheduleSessionCommand{
		MentorID:      "m1",
		MenteeID:      "s1",
		ScheduledDate: at("09:00"),
		Topic:         "Go concurrency",
	})
	require.NoError(t, err)

	assert.Equal(t, mentorship.StatusScheduled, session.Status)
	assert.Equal(t, "2026-10-26", session.SlotDate)
	assert.Equal(t, "09:00", session.StartTime)
	assert.Equal(t, mentorship.DefaultSessionDuration, session.Duration)

	notes, err := f.store.Notifications.ListByRecipient(ctx, "m1", 10)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, 1, f.events.count(shared.EventSessionScheduled))
}

func TestScheduleSession_Conflicts(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		maxPerDay int
		first     string
		second    string
		wantErr   error
	}{
		{name: "same slot", first: "09:00", second: "09:00", wantErr: mentorship.ErrSlotAlreadyBooked},
		{name: "slot not offered", first: "09:00", second: "12:00", wantErr: mentorship.ErrSlotUnavailable},
		{name: "daily limit", maxPerDay: 1, first: "09:00", second: "10:00", wantErr: mentorship.ErrDailyLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.publishAvailability(t, tt.maxPerDay)
			h := NewScheduleSessionHandler(f.sessions)

			_, err := h.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: at(tt.first)})
			require.NoError(t, err)

			_, err = h.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s2", ScheduledDate: at(tt.second)})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, shared.IsConflict(err))
		})
	}
}

func TestScheduleSession_Rejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)
	h := NewScheduleSessionHandler(f.sessions)

	_, err := h.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: now.Add(-time.Hour)})
	assert.True(t, shared.IsValidation(err), "past date")

	_, err = h.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "m1", ScheduledDate: at("09:00")})
	assert.ErrorIs(t, err, mentorship.ErrSelfMentoring)

	_, err = h.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "ghost", ScheduledDate: at("09:00")})
	assert.True(t, shared.IsNotFound(err), "unknown mentee")

	_, err = h.Handle(ctx, ScheduleSessionCommand{MentorID: "s2", MenteeID: "s1", ScheduledDate: at("09:00")})
	assert.ErrorIs(t, err, shared.ErrMentorNotFound)
}

func TestScheduleSession_CancelFreesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)
	book := NewScheduleSessionHandler(f.sessions)
	status := NewUpdateSessionStatusHandler(f.sessions, f.track)

	first, err := book.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: at("09:00")})
	require.NoError(t, err)

	_, err = status.Handle(ctx, UpdateSessionStatusCommand{SessionID: first.ID, Status: "cancelled"})
	require.NoError(t, err)

	_, err = book.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s2", ScheduledDate: at("09:00")})
	assert.NoError(t, err)
}

func TestUpdateSessionStatus_CompletionTracksMentor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)
	status := NewUpdateSessionStatusHandler(f.sessions, f.track)

	session, err := NewScheduleSessionHandler(f.sessions).Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: at("09:00")})
	require.NoError(t, err)

	_, err = status.Handle(ctx, UpdateSessionStatusCommand{SessionID: session.ID, Status: "confirmed"})
	require.NoError(t, err)

	res, err := status.Handle(ctx, UpdateSessionStatusCommand{SessionID: session.ID, Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusCompleted, res.Session.Status)
	require.NotNil(t, res.Activity)
	assert.Equal(t, 1, res.Activity.Stats.MentorshipSessions)
	assert.Equal(t, []string{"First Mentor"}, badgeNames(res.Activity.NewBadges))

	_, err = f.store.Stats.Get(ctx, "s1")
	assert.True(t, shared.IsNotFound(err), "mentee is not credited")

	_, err = status.Handle(ctx, UpdateSessionStatusCommand{SessionID: session.ID, Status: "cancelled"})
	assert.ErrorIs(t, err, mentorship.ErrInvalidTransition)
	assert.Equal(t, 2, f.events.count(shared.EventSessionStatusChanged))
}

// readBarrier holds GetSession callers until n of them have read, so they all
// act on the same stored status.
type readBarrier struct {
	mentorship.Repository
	reads sync.WaitGroup
}

func holdReads(repo mentorship.Repository, n int) *readBarrier {
	b := &readBarrier{Repository: repo}
	b.reads.Add(n)
	return b
}

func (b *readBarrier) GetSession(ctx context.Context, id string) (*mentorship.Session, error) {
	s, err := b.Repository.GetSession(ctx, id)
	b.reads.Done()
	b.reads.Wait()
	return s, err
}

func TestUpdateSessionStatus_ConcurrentCompletionCountsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)

	session, err := NewScheduleSessionHandler(f.sessions).Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: at("09:00")})
	require.NoError(t, err)
	_, err = NewUpdateSessionStatusHandler(f.sessions, f.track).Handle(ctx, UpdateSessionStatusCommand{SessionID: session.ID, Status: "confirmed"})
	require.NoError(t, err)

	deps := f.sessions
	deps.Sessions = holdReads(f.store.Mentorship, 2)
	status := NewUpdateSessionStatusHandler(deps, f.track)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = status.Handle(ctx, UpdateSessionStatusCommand{SessionID: session.ID, Status: "completed"})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.ErrorIs(t, err, mentorship.ErrInvalidTransition)
			assert.True(t, shared.IsConflict(err))
		}
	}
	assert.Equal(t, 1, failed)

	mentor, err := f.store.Stats.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, mentor.MentorshipSessions)
}

func TestRescheduleSession_CannotReviveCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)

	session, err := NewScheduleSessionHandler(f.sessions).Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: at("09:00")})
	require.NoError(t, err)

	deps := f.sessions
	deps.Sessions = holdReads(f.store.Mentorship, 2)

	var moveErr, completeErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, moveErr = NewRescheduleSessionHandler(deps).Handle(ctx, RescheduleSessionCommand{SessionID: session.ID, NewDate: at("10:00")})
	}()
	go func() {
		defer wg.Done()
		_, completeErr = NewUpdateSessionStatusHandler(deps, f.track).Handle(ctx, UpdateSessionStatusCommand{SessionID: session.ID, Status: "completed"})
	}()
	wg.Wait()

	// One writer wins. A completed session stays completed, a moved one is not
	// completed at its old slot.
	require.True(t, (moveErr == nil) != (completeErr == nil), "move=%v complete=%v", moveErr, completeErr)

	got, err := f.store.Mentorship.GetSession(ctx, session.ID)
	require.NoError(t, err)
	if completeErr == nil {
		assert.ErrorIs(t, moveErr, mentorship.ErrInvalidTransition)
		assert.Equal(t, mentorship.StatusCompleted, got.Status)
		assert.Equal(t, "09:00", got.StartTime)
	} else {
		assert.ErrorIs(t, completeErr, mentorship.ErrSessionMoved)
		assert.Equal(t, mentorship.StatusScheduled, got.Status)
		assert.Equal(t, "10:00", got.StartTime)
	}
}

func TestUpdateSessionStatus_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := NewUpdateSessionStatusHandler(f.sessions, nil).Handle(context.Background(),
		UpdateSessionStatusCommand{SessionID: "missing", Status: "confirmed"})
	assert.ErrorIs(t, err, mentorship.ErrSessionNotFound)

	_, err = NewUpdateSessionStatusHandler(f.sessions, nil).Handle(context.Background(),
		UpdateSessionStatusCommand{SessionID: "missing", Status: "scheduled"})
	assert.True(t, shared.IsValidation(err))
}

func TestRescheduleSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.publishAvailability(t, 0)
	book := NewScheduleSessionHandler(f.sessions)
	move := NewRescheduleSessionHandler(f.sessions)

	first, err := book.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s1", ScheduledDate: at("09:00")})
	require.NoError(t, err)
	second, err := book.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s2", ScheduledDate: at("10:00")})
	require.NoError(t, err)

	_, err = move.Handle(ctx, RescheduleSessionCommand{SessionID: second.ID, NewDate: at("09:00")})
	assert.ErrorIs(t, err, mentorship.ErrSlotAlreadyBooked)

	// Moving onto its own slot is allowed.
	same, err := move.Handle(ctx, RescheduleSessionCommand{SessionID: first.ID, NewDate: at("09:00"), Reason: "confirming"})
	require.NoError(t, err)
	assert.Len(t, same.RescheduleHistory, 1)

	next := at("09:00").AddDate(0, 0, 7)
	moved, err := move.Handle(ctx, RescheduleSessionCommand{SessionID: first.ID, NewDate: next, Reason: "travel"})
	require.NoError(t, err)
	assert.Equal(t, "2026-11-02", moved.SlotDate)
	require.Len(t, moved.RescheduleHistory, 2)
	assert.Equal(t, "travel", moved.RescheduleHistory[1].Reason)

	_, err = book.Handle(ctx, ScheduleSessionCommand{MentorID: "m1", MenteeID: "s2", ScheduledDate: at("09:00")})
	assert.NoError(t, err, "old slot released")
}
