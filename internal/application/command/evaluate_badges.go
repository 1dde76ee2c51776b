package command

import (
	"context"
	"fmt"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/application/saga"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE BADGES COMMAND
// Grants every badge whose criteria the user now meets and asks for a
// leaderboard refresh when something was granted.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateBadgesCommand selects the user to evaluate.
type EvaluateBadgesCommand struct {
	UserID string `validate:"required"`

	// Stats and User are loaded when nil.
	Stats *stats.UserStats
	User  *user.User

	// Kind narrows evaluation to badges the activity can affect. Empty
	// evaluates the full catalog.
	Kind stats.ActivityKind
}

// EvaluateBadgesResult lists the new badges and the latest stats.
type EvaluateBadgesResult struct {
	Awarded []*badge.Badge
	Stats   *stats.UserStats
}

// EvaluateBadgesHandler handles EvaluateBadgesCommand.
type EvaluateBadgesHandler struct {
	flow     *saga.AwardFlowSaga
	stats    stats.Repository
	users    user.Repository
	events   shared.EventPublisher
	features shared.FeatureGate
	clock    timeutil.Clock
	log      *logger.Logger
}

// NewEvaluateBadgesHandler creates the handler.
func NewEvaluateBadgesHandler(
	flow *saga.AwardFlowSaga,
	statsRepo stats.Repository,
	users user.Repository,
	events shared.EventPublisher,
	features shared.FeatureGate,
	log *logger.Logger,
) *EvaluateBadgesHandler {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if features == nil {
		features = shared.AllFeatures{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EvaluateBadgesHandler{
		flow:     flow,
		stats:    statsRepo,
		users:    users,
		events:   events,
		features: features,
		clock:    timeutil.SystemClock{},
		log:      log.With(logger.Component("evaluate_badges")),
	}
}

// Evaluate returns the badges newly granted for the given state.
func (h *EvaluateBadgesHandler) Evaluate(ctx context.Context, userID string, s *stats.UserStats, u *user.User) ([]*badge.Badge, error) {
	res, err := h.Handle(ctx, EvaluateBadgesCommand{UserID: userID, Stats: s, User: u})
	if err != nil {
		return nil, err
	}
	return res.Awarded, nil
}

// Handle executes the command.
func (h *EvaluateBadgesHandler) Handle(ctx context.Context, cmd EvaluateBadgesCommand) (*EvaluateBadgesResult, error) {
	if err := validateCommand("EvaluateBadges", cmd); err != nil {
		return nil, err
	}

	u := cmd.User
	if u == nil {
		loaded, err := h.users.GetByID(ctx, cmd.UserID)
		if err != nil {
			return nil, fmt.Errorf("evaluate_badges: load user: %w", err)
		}
		u = loaded
	}

	s := cmd.Stats
	if s == nil {
		loaded, err := h.stats.Get(ctx, cmd.UserID)
		switch {
		case shared.IsNotFound(err):
			loaded = stats.NewUserStats(cmd.UserID, h.clock.Now())
		case err != nil:
			return nil, fmt.Errorf("evaluate_badges: load stats: %w", err)
		}
		s = loaded
	}

	var metrics []badge.Metric
	if cmd.Kind != "" && h.features.IsEnabledFor(config.FeatureBadgeMetricIndex, cmd.UserID) {
		metrics = badge.MetricsTouchedBy(cmd.Kind)
	}

	res, err := h.flow.Execute(ctx, saga.AwardInput{
		UserID:  cmd.UserID,
		Stats:   s,
		User:    u,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate_badges: %w", err)
	}

	if res.HasAwards() && h.features.IsEnabledFor(config.FeatureAwardRefresh, cmd.UserID) {
		if err := h.events.Publish(shared.NewLeaderboardRefreshRequestedEvent(cmd.UserID, "badge_awarded")); err != nil {
			h.log.Warn("leaderboard refresh request failed", logger.UserID(cmd.UserID), logger.Err(err))
		}
	}

	return &EvaluateBadgesResult{Awarded: res.Awarded, Stats: res.Stats}, nil
}
