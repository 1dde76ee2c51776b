package query

import (
	"context"

	"github.com/campus-connect/campus-core/internal/domain/achievement"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER PROFILE QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// UserReadHandler serves per-user reads: stats, achievements and
// notifications.
type UserReadHandler struct {
	users         user.Repository
	stats         stats.Repository
	achievements  achievement.Repository
	notifications notification.Repository
	catalog       *badge.Catalog
	clock         timeutil.Clock
}

// NewUserReadHandler creates the handler.
func NewUserReadHandler(
	users user.Repository,
	statsRepo stats.Repository,
	achievements achievement.Repository,
	notifications notification.Repository,
	catalog *badge.Catalog,
) *UserReadHandler {
	return &UserReadHandler{
		users:         users,
		stats:         statsRepo,
		achievements:  achievements,
		notifications: notifications,
		catalog:       catalog,
		clock:         timeutil.SystemClock{},
	}
}

// Stats returns the user's stats; a user without activity gets zero stats.
func (h *UserReadHandler) Stats(ctx context.Context, userID string) (*stats.UserStats, error) {
	s, err := h.stats.Get(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}
	if _, err := h.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return stats.NewUserStats(userID, h.clock.Now()), nil
}

// AchievementView joins an award with its badge.
type AchievementView struct {
	*achievement.Achievement
	Badge *badge.Badge `json:"badge,omitempty"`
}

// Achievements returns the user's awards, newest first.
func (h *UserReadHandler) Achievements(ctx context.Context, userID string) ([]AchievementView, error) {
	if _, err := h.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	list, err := h.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]AchievementView, 0, len(list))
	for _, a := range list {
		v := AchievementView{Achievement: a}
		if b, ok := h.catalog.ByID(a.BadgeID); ok {
			v.Badge = b
		}
		out = append(out, v)
	}
	return out, nil
}

// Notifications returns the newest notifications, at most limit.
func (h *UserReadHandler) Notifications(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return h.notifications.ListByRecipient(ctx, userID, limit)
}

// Badges returns the catalog.
func (h *UserReadHandler) Badges() []*badge.Badge {
	return h.catalog.All()
}
