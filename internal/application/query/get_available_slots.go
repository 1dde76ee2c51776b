package query

import (
	"context"

	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// GetAvailableSlotsQuery names a mentor and a date (YYYY-MM-DD).
type GetAvailableSlotsQuery struct {
	MentorID string
	Date     string
}

// GetAvailableSlotsHandler handles GetAvailableSlotsQuery.
type GetAvailableSlotsHandler struct {
	sessions mentorship.Repository
}

// NewGetAvailableSlotsHandler creates the handler.
func NewGetAvailableSlotsHandler(sessions mentorship.Repository) *GetAvailableSlotsHandler {
	return &GetAvailableSlotsHandler{sessions: sessions}
}

// Handle returns the open slots sorted by start time. A mentor without an
// availability document yields shared.ErrMentorNotFound.
func (h *GetAvailableSlotsHandler) Handle(ctx context.Context, q GetAvailableSlotsQuery) ([]mentorship.TimeSlot, error) {
	if q.MentorID == "" {
		return nil, shared.ValidationError("mentorship", "GetAvailableSlots", "mentor id is required")
	}
	plan, err := mentorship.PlanDay(ctx, h.sessions, q.MentorID, q.Date, "")
	if err != nil {
		return nil, err
	}
	return plan.Open, nil
}
