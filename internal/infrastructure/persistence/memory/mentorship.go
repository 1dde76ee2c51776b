package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// MentorshipRepo implements mentorship.Repository. Write guards, the
// active-slot check and the write happen under one lock, mirroring the
// Postgres transaction and partial unique index.
type MentorshipRepo struct {
	mu           sync.RWMutex
	availability map[string]*mentorship.Availability
	sessions     map[string]*mentorship.Session
}

// NewMentorshipRepo creates an empty repository.
func NewMentorshipRepo() *MentorshipRepo {
	return &MentorshipRepo{
		availability: make(map[string]*mentorship.Availability),
		sessions:     make(map[string]*mentorship.Session),
	}
}

// GetAvailability implements mentorship.Repository.
func (r *MentorshipRepo) GetAvailability(_ context.Context, mentorID string) (*mentorship.Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.availability[mentorID]
	if !ok {
		return nil, shared.ErrMentorNotFound
	}
	return copyAvailability(a), nil
}

// SaveAvailability implements mentorship.Repository.
func (r *MentorshipRepo) SaveAvailability(_ context.Context, a *mentorship.Availability) error {
	r.mu.Lock()
	r.availability[a.MentorID] = copyAvailability(a)
	r.mu.Unlock()
	return nil
}

// InsertSession implements mentorship.Repository.
func (r *MentorshipRepo) InsertSession(_ context.Context, s *mentorship.Session, guard mentorship.WriteGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return shared.NewDomainError("mentorship", "InsertSession", shared.ErrConflict, "session id already exists")
	}
	if err := r.checkActive(s, guard.MaxPerDay); err != nil {
		return err
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

// UpdateSession implements mentorship.Repository.
func (r *MentorshipRepo) UpdateSession(_ context.Context, s *mentorship.Session, guard mentorship.WriteGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[s.ID]
	if !ok {
		return mentorship.ErrSessionNotFound
	}
	if guard.ExpectedStatus != "" && stored.Status != guard.ExpectedStatus {
		return staleStatusErr(stored.Status, guard.ExpectedStatus)
	}
	if !guard.ExpectedSlot.IsZero() && !stored.ScheduledDate.Equal(guard.ExpectedSlot) {
		return mentorship.ErrSessionMoved
	}
	if err := r.checkActive(s, guard.MaxPerDay); err != nil {
		return err
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

// GetSession implements mentorship.Repository.
func (r *MentorshipRepo) GetSession(_ context.Context, id string) (*mentorship.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, mentorship.ErrSessionNotFound
	}
	return s.Clone(), nil
}

// ListActiveSessions implements mentorship.Repository.
func (r *MentorshipRepo) ListActiveSessions(_ context.Context, mentorID, date string) ([]*mentorship.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*mentorship.Session, 0)
	for _, s := range r.sessions {
		if s.MentorID == mentorID && s.SlotDate == date && s.Status.IsActive() {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// checkActive enforces the slot and daily limit for an active s against
// the other active sessions of the mentor that day. Caller holds r.mu.
func (r *MentorshipRepo) checkActive(s *mentorship.Session, maxPerDay int) error {
	if !s.Status.IsActive() {
		return nil
	}
	sameDay := 0
	for id, other := range r.sessions {
		if id == s.ID || !other.Status.IsActive() || other.MentorID != s.MentorID || other.SlotDate != s.SlotDate {
			continue
		}
		if other.StartTime == s.StartTime {
			return mentorship.ErrSlotAlreadyBooked
		}
		sameDay++
	}
	if maxPerDay > 0 && sameDay >= maxPerDay {
		return mentorship.ErrDailyLimitReached
	}
	return nil
}

func staleStatusErr(stored, expected mentorship.Status) error {
	return shared.WrapError("mentorship", "UpdateSession", shared.ErrConflict,
		fmt.Sprintf("session is %s, expected %s", stored, expected), mentorship.ErrInvalidTransition)
}

func copyAvailability(a *mentorship.Availability) *mentorship.Availability {
	c := *a
	c.WeeklySchedule = make([]mentorship.DaySchedule, len(a.WeeklySchedule))
	for i, d := range a.WeeklySchedule {
		d.TimeSlots = append([]mentorship.TimeSlot(nil), d.TimeSlots...)
		c.WeeklySchedule[i] = d
	}
	c.Exceptions = make([]mentorship.Exception, len(a.Exceptions))
	for i, e := range a.Exceptions {
		e.TimeSlots = append([]mentorship.TimeSlot(nil), e.TimeSlots...)
		c.Exceptions[i] = e
	}
	return &c
}
