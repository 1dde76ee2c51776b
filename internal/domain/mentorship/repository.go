package mentorship

import (
	"context"
	"time"
)

// Repository persists availability documents and sessions.
type Repository interface {
	// GetAvailability returns shared.ErrMentorNotFound when the mentor has
	// never published availability.
	GetAvailability(ctx context.Context, mentorID string) (*Availability, error)

	// SaveAvailability replaces the mentor's document.
	SaveAvailability(ctx context.Context, a *Availability) error

	// InsertSession stores a new session. It returns ErrSlotAlreadyBooked
	// when an active session already holds the same (mentor, date, start)
	// and ErrDailyLimitReached when guard.MaxPerDay is exceeded; both are
	// enforced at write time.
	InsertSession(ctx context.Context, s *Session, guard WriteGuard) error

	// UpdateSession writes status, slot and history. Moving an active
	// session onto a held slot returns ErrSlotAlreadyBooked; a stored
	// status other than guard.ExpectedStatus returns ErrInvalidTransition
	// and a stored slot other than guard.ExpectedSlot returns ErrSessionMoved.
	UpdateSession(ctx context.Context, s *Session, guard WriteGuard) error

	// GetSession returns ErrSessionNotFound when absent.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ListActiveSessions returns scheduled and confirmed sessions of the
	// mentor on date (YYYY-MM-DD in the mentor's timezone).
	ListActiveSessions(ctx context.Context, mentorID, date string) ([]*Session, error)
}

// WriteGuard holds the conditions a repository re-checks atomically with a
// session write.
type WriteGuard struct {
	// ExpectedStatus must equal the stored status. Empty skips the check.
	ExpectedStatus Status

	// ExpectedSlot must equal the stored ScheduledDate. Zero skips the check.
	ExpectedSlot time.Time

	// MaxPerDay caps the mentor's active sessions on the session's date.
	// Zero skips the check.
	MaxPerDay int
}

