package leaderboard

import (
	"context"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// ErrSnapshotNotFound is returned for a board that was never built.
var ErrSnapshotNotFound = shared.NewDomainError("leaderboard", "Get", shared.ErrNotFound, "leaderboard not built yet")

// Repository stores snapshots. Save replaces the stored rankings for the
// snapshot's key entirely.
type Repository interface {
	// Save overwrites the snapshot for its (type, period).
	Save(ctx context.Context, s *Snapshot) error

	// Get returns the snapshot or ErrSnapshotNotFound.
	Get(ctx context.Context, key Key) (*Snapshot, error)
}

// SnapshotCache is a read-through mirror in front of Repository.
// Implementations are best-effort: errors are reported but callers fall
// back to the repository.
type SnapshotCache interface {
	Get(ctx context.Context, key Key) (*Snapshot, error)
	Set(ctx context.Context, s *Snapshot) error
	Invalidate(ctx context.Context, key Key) error
}
