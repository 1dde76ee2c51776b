package command

import (
	"context"
	"fmt"

	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// SetAvailabilityCommand replaces a mentor's availability document.
type SetAvailabilityCommand struct {
	MentorID          string                   `validate:"required,max=64"`
	WeeklySchedule    []mentorship.DaySchedule `validate:"max=7"`
	Exceptions        []mentorship.Exception   `validate:"max=366"`
	Timezone          string                   `validate:"max=64"`
	MaxSessionsPerDay int                      `validate:"gte=0,lte=48"`
	SessionDuration   int                      `validate:"gte=0,lte=480"`
}

// SetAvailabilityHandler handles SetAvailabilityCommand.
type SetAvailabilityHandler struct {
	deps SessionDeps
	log  *logger.Logger
}

// NewSetAvailabilityHandler creates the handler.
func NewSetAvailabilityHandler(deps SessionDeps) *SetAvailabilityHandler {
	deps.defaults()
	return &SetAvailabilityHandler{deps: deps, log: deps.Logger.With(logger.Component("set_availability"))}
}

// Handle validates and stores the document. The mentor must exist.
func (h *SetAvailabilityHandler) Handle(ctx context.Context, cmd SetAvailabilityCommand) (*mentorship.Availability, error) {
	if err := validateCommand("SetAvailability", cmd); err != nil {
		return nil, err
	}
	if _, err := h.deps.Users.GetByID(ctx, cmd.MentorID); err != nil {
		return nil, fmt.Errorf("set_availability: load mentor: %w", err)
	}

	av := &mentorship.Availability{
		MentorID:          cmd.MentorID,
		WeeklySchedule:    cmd.WeeklySchedule,
		Exceptions:        cmd.Exceptions,
		Timezone:          cmd.Timezone,
		MaxSessionsPerDay: cmd.MaxSessionsPerDay,
		SessionDuration:   cmd.SessionDuration,
		UpdatedAt:         h.deps.Clock.Now(),
	}
	if av.WeeklySchedule == nil {
		av.WeeklySchedule = []mentorship.DaySchedule{}
	}
	if av.Exceptions == nil {
		av.Exceptions = []mentorship.Exception{}
	}
	av.Normalize()
	if err := av.Validate(); err != nil {
		return nil, err
	}

	if err := h.deps.Sessions.SaveAvailability(ctx, av); err != nil {
		return nil, fmt.Errorf("set_availability: %w", err)
	}
	h.log.Info("availability updated",
		logger.MentorID(cmd.MentorID),
		logger.Int("weekdays", len(av.WeeklySchedule)),
		logger.Int("exceptions", len(av.Exceptions)),
	)
	return av, nil
}
