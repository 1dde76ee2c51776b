package command

import (
	"context"
	"fmt"

	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// UpdateSessionStatusCommand moves a session through its lifecycle.
type UpdateSessionStatusCommand struct {
	SessionID string `validate:"required"`
	Status    string `validate:"required,oneof=confirmed completed cancelled"`
}

// UpdateSessionStatusResult carries the session and, on completion, the
// mentor's activity outcome.
type UpdateSessionStatusResult struct {
	Session  *mentorship.Session
	Activity *TrackActivityResult
}

// UpdateSessionStatusHandler handles UpdateSessionStatusCommand.
type UpdateSessionStatusHandler struct {
	deps    SessionDeps
	tracker *TrackActivityHandler
	log     *logger.Logger
}

// NewUpdateSessionStatusHandler creates the handler. tracker receives a
// mentorship_session activity for the mentor when a session completes.
func NewUpdateSessionStatusHandler(deps SessionDeps, tracker *TrackActivityHandler) *UpdateSessionStatusHandler {
	deps.defaults()
	return &UpdateSessionStatusHandler{
		deps:    deps,
		tracker: tracker,
		log:     deps.Logger.With(logger.Component("update_session_status")),
	}
}

// Handle executes the command. Activity tracking after completion is best
// effort: the status change stands even if tracking fails.
func (h *UpdateSessionStatusHandler) Handle(ctx context.Context, cmd UpdateSessionStatusCommand) (*UpdateSessionStatusResult, error) {
	if err := validateCommand("UpdateSessionStatus", cmd); err != nil {
		return nil, err
	}
	next, err := mentorship.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}

	session, err := h.deps.Sessions.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	previous := session.Status

	updated := session.Clone()
	if err := updated.TransitionTo(next, h.deps.Clock.Now()); err != nil {
		return nil, err
	}
	// A concurrent change of the same session fails here, so completion is
	// tracked once per session.
	guard := mentorship.WriteGuard{ExpectedStatus: previous, ExpectedSlot: session.ScheduledDate}
	if err := h.deps.Sessions.UpdateSession(ctx, updated, guard); err != nil {
		if shared.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update_session_status: %w", err)
	}

	h.log.Info("session status changed",
		logger.String("session_id", updated.ID),
		logger.String("from", string(previous)),
		logger.String("to", string(next)),
	)
	h.deps.publish(shared.NewSessionStatusChangedEvent(updated.ID, updated.MentorID, string(previous), string(next)))

	result := &UpdateSessionStatusResult{Session: updated}
	switch next {
	case mentorship.StatusConfirmed:
		h.deps.notifySession(ctx, updated.MenteeID, updated.ID, "Session confirmed",
			fmt.Sprintf("Your session on %s at %s is confirmed", updated.SlotDate, updated.StartTime))
	case mentorship.StatusCancelled:
		h.deps.notifySession(ctx, updated.MenteeID, updated.ID, "Session cancelled",
			fmt.Sprintf("Your session on %s at %s was cancelled", updated.SlotDate, updated.StartTime))
		h.deps.notifySession(ctx, updated.MentorID, updated.ID, "Session cancelled",
			fmt.Sprintf("The session on %s at %s was cancelled", updated.SlotDate, updated.StartTime))
	case mentorship.StatusCompleted:
		if h.tracker != nil {
			res, err := h.tracker.Handle(ctx, TrackActivityCommand{
				UserID:        updated.MentorID,
				Kind:          string(stats.ActivityMentorshipSession),
				Metadata:      map[string]any{"sessionId": updated.ID},
				CorrelationID: updated.ID,
			})
			if err != nil {
				h.log.Error("tracking completed session failed",
					logger.MentorID(updated.MentorID),
					logger.String("session_id", updated.ID),
					logger.Err(err),
				)
			} else {
				result.Activity = res
			}
		}
	}
	return result, nil
}
