// Package saga contains business processes that orchestrate several domain
// operations in a fixed order.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/domain/achievement"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD FLOW SAGA
// Load Earned → Select Eligible → Grant (insert-if-absent) → Credit Points →
// Notify → Publish. Credits can unlock point-based badges, so the flow
// re-runs on the point metrics until nothing new is awarded.
// ══════════════════════════════════════════════════════════════════════════════

// AwardInput is what the flow evaluates.
type AwardInput struct {
	UserID string

	// Stats is the state after the triggering update.
	Stats *stats.UserStats

	// User supplies profile metrics. May be nil.
	User *user.User

	// Metrics restricts the first round to badges depending on these
	// metrics. Nil evaluates the whole catalog.
	Metrics []badge.Metric
}

// Validate checks the input.
func (i AwardInput) Validate() error {
	if i.UserID == "" {
		return shared.ValidationError("award_flow", "Validate", "user id is required")
	}
	if i.Stats == nil {
		return shared.ValidationError("award_flow", "Validate", "stats are required")
	}
	return nil
}

// AwardFlowResult is the outcome of one run.
type AwardFlowResult struct {
	UserID string

	// Awarded lists badges granted by this run, in award order.
	Awarded []*badge.Badge

	// Stats is the latest state, including credited points.
	Stats *stats.UserStats

	PointsCredited    int
	NotificationsSent int

	// Conflicts counts badges another writer granted first.
	Conflicts int

	ProcessedAt time.Time
}

// HasAwards reports whether anything was granted.
func (r *AwardFlowResult) HasAwards() bool {
	return len(r.Awarded) > 0
}

// AwardFlowStep names a step for error reporting.
type AwardFlowStep string

const (
	StepLoadEarned     AwardFlowStep = "load_earned"
	StepSelectEligible AwardFlowStep = "select_eligible"
	StepGrant          AwardFlowStep = "grant"
	StepCreditPoints   AwardFlowStep = "credit_points"
	StepNotify         AwardFlowStep = "notify"
	StepPublish        AwardFlowStep = "publish"
)

// AwardFlowConfig tunes the saga.
type AwardFlowConfig struct {
	// MaxRounds bounds the re-evaluation loop after point credits.
	MaxRounds int
}

// DefaultAwardFlowConfig returns default configuration.
func DefaultAwardFlowConfig() AwardFlowConfig {
	return AwardFlowConfig{MaxRounds: 4}
}

// AwardFlowSaga grants badges exactly once per (user, badge).
type AwardFlowSaga struct {
	catalog      *badge.Catalog
	achievements achievement.Repository
	stats        stats.Repository
	notifier     notification.Sink
	events       shared.EventPublisher
	ids          shared.IDGenerator
	features     shared.FeatureGate
	clock        timeutil.Clock
	log          *logger.Logger
	cfg          AwardFlowConfig
}

// AwardFlowDeps groups the saga collaborators.
type AwardFlowDeps struct {
	Catalog      *badge.Catalog
	Achievements achievement.Repository
	Stats        stats.Repository
	Notifier     notification.Sink
	Events       shared.EventPublisher
	IDs          shared.IDGenerator
	Features     shared.FeatureGate
	Clock        timeutil.Clock
	Logger       *logger.Logger
}

// NewAwardFlowSaga creates the saga.
func NewAwardFlowSaga(deps AwardFlowDeps, cfg AwardFlowConfig) *AwardFlowSaga {
	if cfg.MaxRounds <= 0 {
		cfg = DefaultAwardFlowConfig()
	}
	if deps.Events == nil {
		deps.Events = shared.NopPublisher{}
	}
	if deps.Features == nil {
		deps.Features = shared.AllFeatures{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &AwardFlowSaga{
		catalog:      deps.Catalog,
		achievements: deps.Achievements,
		stats:        deps.Stats,
		notifier:     deps.Notifier,
		events:       deps.Events,
		ids:          deps.IDs,
		features:     deps.Features,
		clock:        deps.Clock,
		log:          deps.Logger.With(logger.Component("award_flow")),
		cfg:          cfg,
	}
}

// Execute evaluates the input and grants every badge whose criteria hold.
// Notification and event failures are logged and never fail the run.
func (s *AwardFlowSaga) Execute(ctx context.Context, in AwardInput) (*AwardFlowResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	result := &AwardFlowResult{UserID: in.UserID, Awarded: []*badge.Badge{}, Stats: in.Stats}

	earned, err := s.achievements.EarnedBadgeIDs(ctx, in.UserID)
	if err != nil {
		return nil, s.wrapError(StepLoadEarned, in.UserID, err)
	}
	if earned == nil {
		earned = make(map[string]struct{})
	}

	metrics := in.Metrics
	for round := 0; round < s.cfg.MaxRounds; round++ {
		candidates := badge.Eligible(s.catalog.ForMetrics(metrics), earned, result.Stats, in.User)
		if len(candidates) == 0 {
			break
		}

		var touched []badge.Metric
		for _, b := range candidates {
			granted, err := s.grant(ctx, in.UserID, b, result)
			earned[b.ID] = struct{}{}
			if err != nil {
				return result, err
			}
			if granted {
				touched = append(touched, badge.MetricsForCategory(b.Category)...)
			}
		}
		if len(touched) == 0 {
			break
		}
		metrics = touched
	}

	result.ProcessedAt = s.clock.Now()
	return result, nil
}

// grant runs Grant → Credit → Notify → Publish for one badge. It returns
// false without error when another writer holds the award already.
func (s *AwardFlowSaga) grant(ctx context.Context, userID string, b *badge.Badge, result *AwardFlowResult) (bool, error) {
	now := s.clock.Now()
	a := achievement.NewCompleted(s.ids.GenerateID(), userID, b.ID, b.Criteria.Target, now)

	inserted, err := s.achievements.InsertIfAbsent(ctx, a)
	if err != nil {
		return false, s.wrapError(StepGrant, userID, err)
	}
	if !inserted {
		result.Conflicts++
		s.log.Debug("badge already earned",
			logger.UserID(userID),
			logger.BadgeName(b.Name),
			logger.Err(badge.ErrAlreadyEarned),
		)
		return false, nil
	}

	if b.Points > 0 {
		updated, err := s.stats.CreditPoints(ctx, userID, b.Points, stats.CategoryCounter(string(b.Category)), now)
		if err != nil {
			return false, s.wrapError(StepCreditPoints, userID, err)
		}
		if updated.Level > result.Stats.Level {
			s.publish(shared.NewLevelUpEvent(userID, result.Stats.Level, updated.Level))
		}
		result.Stats = updated
		result.PointsCredited += b.Points
	}
	result.Awarded = append(result.Awarded, b)

	s.log.Info("badge awarded",
		logger.UserID(userID),
		logger.BadgeName(b.Name),
		logger.Points(b.Points),
	)

	if s.notify(ctx, userID, b, now) {
		result.NotificationsSent++
	}
	s.publish(shared.NewBadgeAwardedEvent(userID, b.ID, b.Name, string(b.Category), b.Points))
	return true, nil
}

func (s *AwardFlowSaga) notify(ctx context.Context, userID string, b *badge.Badge, at time.Time) bool {
	if s.notifier == nil || !s.features.IsEnabledFor(config.FeatureNotifyAchievement, userID) {
		return false
	}
	n, err := notification.New(notification.AchievementParams(s.ids.GenerateID(), userID, b.ID, b.Name, b.Icon, b.Points, at))
	if err == nil {
		err = s.notifier.Notify(ctx, n)
	}
	if err != nil {
		s.log.Warn("achievement notification failed",
			logger.UserID(userID),
			logger.BadgeName(b.Name),
			logger.Operation(string(StepNotify)),
			logger.Err(err),
		)
		return false
	}
	return true
}

func (s *AwardFlowSaga) publish(e shared.Event) {
	if err := s.events.Publish(e); err != nil {
		s.log.Warn("event publish failed",
			logger.String("event_type", string(e.EventType())),
			logger.Operation(string(StepPublish)),
			logger.Err(err),
		)
	}
}

func (s *AwardFlowSaga) wrapError(step AwardFlowStep, userID string, err error) error {
	return &AwardFlowError{
		Step:    step,
		UserID:  userID,
		Cause:   err,
		Message: fmt.Sprintf("award flow failed at step '%s': %v", step, err),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// AwardFlowError reports the failed step.
type AwardFlowError struct {
	Step    AwardFlowStep
	UserID  string
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *AwardFlowError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AwardFlowError) Unwrap() error {
	return e.Cause
}

// FailedStep extracts the step from an award flow error.
func FailedStep(err error) (AwardFlowStep, bool) {
	var fe *AwardFlowError
	if errors.As(err, &fe) {
		return fe.Step, true
	}
	return "", false
}
