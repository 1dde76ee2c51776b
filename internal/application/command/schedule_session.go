package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTORSHIP COMMANDS
// Availability, booking, status changes and rescheduling. Slot checks run
// against the resolved day plan and are repeated by storage at write time.
// ══════════════════════════════════════════════════════════════════════════════

// SessionDeps groups the collaborators of the session handlers.
type SessionDeps struct {
	Sessions mentorship.Repository
	Users    user.Repository
	Notifier notification.Sink
	Events   shared.EventPublisher
	IDs      shared.IDGenerator
	Features shared.FeatureGate
	Clock    timeutil.Clock
	Logger   *logger.Logger
}

func (d *SessionDeps) defaults() {
	if d.Events == nil {
		d.Events = shared.NopPublisher{}
	}
	if d.Features == nil {
		d.Features = shared.AllFeatures{}
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
}

// notifySession writes a session notification, logging failures.
func (d *SessionDeps) notifySession(ctx context.Context, recipient, sessionID, title, message string) {
	if d.Notifier == nil || !d.Features.IsEnabledFor(config.FeatureNotifySession, recipient) {
		return
	}
	n, err := notification.New(notification.SessionParams(d.IDs.GenerateID(), recipient, sessionID, title, message, d.Clock.Now()))
	if err == nil {
		err = d.Notifier.Notify(ctx, n)
	}
	if err != nil {
		d.Logger.Warn("session notification failed",
			logger.UserID(recipient),
			logger.String("session_id", sessionID),
			logger.Err(err),
		)
	}
}

func (d *SessionDeps) publish(e shared.Event) {
	if err := d.Events.Publish(e); err != nil {
		d.Logger.Warn("event publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE SESSION
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSessionCommand books a slot.
type ScheduleSessionCommand struct {
	MentorID      string    `validate:"required,max=64"`
	MenteeID      string    `validate:"required,max=64"`
	ScheduledDate time.Time `validate:"required"`

	// Duration in minutes; zero uses the mentor's default.
	Duration int    `validate:"gte=0,lte=480"`
	Topic    string `validate:"max=200"`
}

// ScheduleSessionHandler handles ScheduleSessionCommand.
type ScheduleSessionHandler struct {
	deps SessionDeps
	log  *logger.Logger
}

// NewScheduleSessionHandler creates the handler.
func NewScheduleSessionHandler(deps SessionDeps) *ScheduleSessionHandler {
	deps.defaults()
	return &ScheduleSessionHandler{deps: deps, log: deps.Logger.With(logger.Component("schedule_session"))}
}

// Handle books the session. Conflicts surface as ErrSlotAlreadyBooked,
// ErrSlotUnavailable or ErrDailyLimitReached.
func (h *ScheduleSessionHandler) Handle(ctx context.Context, cmd ScheduleSessionCommand) (*mentorship.Session, error) {
	if err := validateCommand("ScheduleSession", cmd); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()
	if !cmd.ScheduledDate.After(now) {
		return nil, shared.ValidationError("mentorship", "Schedule", "scheduled date %s is in the past", cmd.ScheduledDate.Format(time.RFC3339))
	}
	if _, err := h.deps.Users.GetByID(ctx, cmd.MenteeID); err != nil {
		return nil, fmt.Errorf("schedule_session: load mentee: %w", err)
	}

	av, err := h.deps.Sessions.GetAvailability(ctx, cmd.MentorID)
	if err != nil {
		return nil, fmt.Errorf("schedule_session: load availability: %w", err)
	}

	session, err := mentorship.NewSession(h.deps.IDs.GenerateID(), cmd.MentorID, cmd.MenteeID, cmd.ScheduledDate, cmd.Duration, cmd.Topic, av, now)
	if err != nil {
		return nil, err
	}

	plan, err := mentorship.PlanDay(ctx, h.deps.Sessions, cmd.MentorID, session.SlotDate, "")
	if err != nil {
		return nil, fmt.Errorf("schedule_session: plan day: %w", err)
	}
	if err := plan.CheckBookable(session.StartTime); err != nil {
		return nil, err
	}

	guard := mentorship.WriteGuard{MaxPerDay: plan.Availability.MaxSessionsPerDay}
	if err := h.deps.Sessions.InsertSession(ctx, session, guard); err != nil {
		if shared.IsConflict(err) {
			h.log.Info("slot taken at write time",
				logger.MentorID(cmd.MentorID),
				logger.String("slot", session.SlotDate+" "+session.StartTime),
			)
			return nil, err
		}
		return nil, fmt.Errorf("schedule_session: insert: %w", err)
	}

	h.log.Info("session scheduled",
		logger.MentorID(cmd.MentorID),
		logger.UserID(cmd.MenteeID),
		logger.String("slot", session.SlotDate+" "+session.StartTime),
	)

	h.deps.notifySession(ctx, cmd.MentorID, session.ID, "New mentorship session",
		fmt.Sprintf("A session was booked on %s at %s", session.SlotDate, session.StartTime))
	h.deps.publish(shared.NewSessionScheduledEvent(session.ID, session.MentorID, session.MenteeID, session.ScheduledDate))
	return session, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESCHEDULE SESSION
// ══════════════════════════════════════════════════════════════════════════════

// RescheduleSessionCommand moves a session.
type RescheduleSessionCommand struct {
	SessionID string    `validate:"required"`
	NewDate   time.Time `validate:"required"`
	Reason    string    `validate:"max=500"`
}

// RescheduleSessionHandler handles RescheduleSessionCommand.
type RescheduleSessionHandler struct {
	deps SessionDeps
	log  *logger.Logger
}

// NewRescheduleSessionHandler creates the handler.
func NewRescheduleSessionHandler(deps SessionDeps) *RescheduleSessionHandler {
	deps.defaults()
	return &RescheduleSessionHandler{deps: deps, log: deps.Logger.With(logger.Component("reschedule_session"))}
}

// Handle moves the session under the same slot rules as booking.
func (h *RescheduleSessionHandler) Handle(ctx context.Context, cmd RescheduleSessionCommand) (*mentorship.Session, error) {
	if err := validateCommand("RescheduleSession", cmd); err != nil {
		return nil, err
	}
	now := h.deps.Clock.Now()
	if !cmd.NewDate.After(now) {
		return nil, shared.ValidationError("mentorship", "Reschedule", "new date %s is in the past", cmd.NewDate.Format(time.RFC3339))
	}

	session, err := h.deps.Sessions.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsActive() {
		return nil, shared.WrapError("mentorship", "Reschedule", shared.ErrConflict,
			fmt.Sprintf("cannot reschedule a %s session", session.Status), mentorship.ErrInvalidTransition)
	}

	av, err := h.deps.Sessions.GetAvailability(ctx, session.MentorID)
	if err != nil {
		return nil, fmt.Errorf("reschedule_session: load availability: %w", err)
	}
	date, start := mentorship.SlotKey(cmd.NewDate, av.Location())

	plan, err := mentorship.PlanDay(ctx, h.deps.Sessions, session.MentorID, date, session.ID)
	if err != nil {
		return nil, fmt.Errorf("reschedule_session: plan day: %w", err)
	}
	if err := plan.CheckBookable(start); err != nil {
		return nil, err
	}

	updated := session.Clone()
	if err := updated.Reschedule(cmd.NewDate, cmd.Reason, av.Location(), now); err != nil {
		return nil, err
	}
	guard := mentorship.WriteGuard{
		ExpectedStatus: session.Status,
		ExpectedSlot:   session.ScheduledDate,
		MaxPerDay:      av.MaxSessionsPerDay,
	}
	if err := h.deps.Sessions.UpdateSession(ctx, updated, guard); err != nil {
		if shared.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("reschedule_session: update: %w", err)
	}

	h.log.Info("session rescheduled",
		logger.MentorID(updated.MentorID),
		logger.String("session_id", updated.ID),
		logger.String("slot", updated.SlotDate+" "+updated.StartTime),
	)

	msg := fmt.Sprintf("Session moved to %s at %s", updated.SlotDate, updated.StartTime)
	h.deps.notifySession(ctx, updated.MentorID, updated.ID, "Session rescheduled", msg)
	h.deps.notifySession(ctx, updated.MenteeID, updated.ID, "Session rescheduled", msg)
	h.deps.publish(shared.NewSessionScheduledEvent(updated.ID, updated.MentorID, updated.MenteeID, updated.ScheduledDate))
	return updated, nil
}
