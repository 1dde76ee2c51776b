package stats

import (
	"context"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// ErrStatsNotFound is returned by Get for a user without activity.
var ErrStatsNotFound = shared.NewDomainError("stats", "Get", shared.ErrNotFound, "user has no stats")

// Repository persists UserStats. Implementations must apply each mutation
// atomically per user: counter columns use increment operators and the
// streak is recomputed under a row lock, never from a stale read.
type Repository interface {
	// Get returns stats for userID or ErrStatsNotFound if the user never
	// had an activity.
	Get(ctx context.Context, userID string) (*UserStats, error)

	// ApplyActivity creates the row if absent, increments the counters of
	// kind by one, upserts the month bucket, recomputes streak and level,
	// and returns the stored result.
	ApplyActivity(ctx context.Context, userID string, kind ActivityKind, at time.Time) (*UserStats, error)

	// CreditPoints adds points to totalPoints, to the category counter (if
	// non-empty) and to the month bucket, and recomputes level.
	CreditPoints(ctx context.Context, userID string, points int, category Counter, at time.Time) (*UserStats, error)

	// ListActiveSince returns stats of every user whose last activity is at
	// or after since. A zero since returns all users.
	ListActiveSince(ctx context.Context, since time.Time) ([]*UserStats, error)
}
