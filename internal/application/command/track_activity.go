package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK ACTIVITY COMMAND
// Applies one activity to the user's stats, then runs badge evaluation as
// a best-effort side effect.
// ══════════════════════════════════════════════════════════════════════════════

// TrackActivityCommand contains the data to record an activity.
type TrackActivityCommand struct {
	UserID string `validate:"required,max=64"`

	// Kind is the activity name. Unknown kinds are ignored.
	Kind string `validate:"required,max=64"`

	// Metadata is opaque and only logged.
	Metadata map[string]any

	// OccurredAt defaults to now.
	OccurredAt time.Time

	CorrelationID string
}

// TrackActivityResult contains the result of tracking an activity.
type TrackActivityResult struct {
	// Tracked is false when the kind was unknown and nothing changed.
	Tracked bool

	Stats     *stats.UserStats
	NewBadges []*badge.Badge
}

// TrackActivityHandler handles TrackActivityCommand.
type TrackActivityHandler struct {
	users     user.Repository
	stats     stats.Repository
	evaluator *EvaluateBadgesHandler
	events    shared.EventPublisher
	features  shared.FeatureGate
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewTrackActivityHandler creates a new TrackActivityHandler.
func NewTrackActivityHandler(
	users user.Repository,
	statsRepo stats.Repository,
	evaluator *EvaluateBadgesHandler,
	events shared.EventPublisher,
	features shared.FeatureGate,
	clock timeutil.Clock,
	log *logger.Logger,
) *TrackActivityHandler {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if features == nil {
		features = shared.AllFeatures{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TrackActivityHandler{
		users:     users,
		stats:     statsRepo,
		evaluator: evaluator,
		events:    events,
		features:  features,
		clock:     clock,
		log:       log.With(logger.Component("track_activity")),
	}
}

// Handle executes the command.
func (h *TrackActivityHandler) Handle(ctx context.Context, cmd TrackActivityCommand) (*TrackActivityResult, error) {
	if err := validateCommand("TrackActivity", cmd); err != nil {
		return nil, err
	}

	u, err := h.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("track_activity: load user: %w", err)
	}

	kind, err := stats.ParseActivityKind(cmd.Kind)
	if err != nil {
		h.log.Debug("ignoring unknown activity kind",
			logger.UserID(cmd.UserID),
			logger.ActivityKind(cmd.Kind),
		)
		current, err := h.currentStats(ctx, cmd.UserID)
		if err != nil {
			return nil, err
		}
		return &TrackActivityResult{Stats: current, NewBadges: []*badge.Badge{}}, nil
	}

	at := cmd.OccurredAt
	if at.IsZero() {
		at = h.clock.Now()
	}

	updated, err := h.stats.ApplyActivity(ctx, cmd.UserID, kind, at)
	if err != nil {
		return nil, fmt.Errorf("track_activity: apply %s: %w", kind, err)
	}

	h.log.Debug("activity tracked",
		logger.UserID(cmd.UserID),
		logger.ActivityKind(string(kind)),
		logger.Int("streak", updated.Streaks.Current),
		logger.Any("metadata", cmd.Metadata),
	)

	event := shared.NewActivityTrackedEvent(cmd.UserID, string(kind), updated.Streaks.Current, updated.Level)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	if err := h.events.Publish(event); err != nil {
		h.log.Warn("event publish failed", logger.UserID(cmd.UserID), logger.Err(err))
	}

	result := &TrackActivityResult{Tracked: true, Stats: updated, NewBadges: []*badge.Badge{}}

	if h.evaluator == nil || !h.features.IsEnabledFor(config.FeatureBadges, cmd.UserID) {
		return result, nil
	}

	// Badge failures never fail the activity.
	eval, err := h.evaluator.Handle(ctx, EvaluateBadgesCommand{
		UserID: cmd.UserID,
		Stats:  updated,
		User:   u,
		Kind:   kind,
	})
	if err != nil {
		h.log.Error("badge evaluation failed",
			logger.UserID(cmd.UserID),
			logger.ActivityKind(string(kind)),
			logger.Err(err),
		)
		return result, nil
	}
	result.Stats = eval.Stats
	result.NewBadges = eval.Awarded
	return result, nil
}

func (h *TrackActivityHandler) currentStats(ctx context.Context, userID string) (*stats.UserStats, error) {
	s, err := h.stats.Get(ctx, userID)
	if shared.IsNotFound(err) {
		return stats.NewUserStats(userID, h.clock.Now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("track_activity: load stats: %w", err)
	}
	return s, nil
}
