// Package achievement holds award records. A record is unique per
// (user, badge) and is written once, complete.
package achievement

import (
	"context"
	"time"
)

// Achievement records that a user earned a badge.
type Achievement struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	BadgeID     string    `json:"badgeId"`
	EarnedAt    time.Time `json:"earnedAt"`
	Progress    float64   `json:"progress"`
	IsCompleted bool      `json:"isCompleted"`
}

// NewCompleted builds an award record with progress at target.
func NewCompleted(id, userID, badgeID string, target float64, at time.Time) *Achievement {
	return &Achievement{
		ID:          id,
		UserID:      userID,
		BadgeID:     badgeID,
		EarnedAt:    at,
		Progress:    target,
		IsCompleted: true,
	}
}

// Repository persists achievements.
type Repository interface {
	// InsertIfAbsent stores a unless (a.UserID, a.BadgeID) already exists.
	// It reports whether a row was inserted; concurrent callers racing on
	// the same pair see exactly one true.
	InsertIfAbsent(ctx context.Context, a *Achievement) (bool, error)

	// EarnedBadgeIDs returns the set of badge ids the user holds.
	EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error)

	// ListByUser returns the user's achievements, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Achievement, error)
}
