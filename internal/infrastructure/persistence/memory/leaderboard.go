package memory

import (
	"context"
	"sync"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
)

// LeaderboardRepo implements leaderboard.Repository.
type LeaderboardRepo struct {
	mu    sync.RWMutex
	snaps map[leaderboard.Key]*leaderboard.Snapshot
}

// NewLeaderboardRepo creates an empty repository.
func NewLeaderboardRepo() *LeaderboardRepo {
	return &LeaderboardRepo{snaps: make(map[leaderboard.Key]*leaderboard.Snapshot)}
}

// Save implements leaderboard.Repository.
func (r *LeaderboardRepo) Save(_ context.Context, s *leaderboard.Snapshot) error {
	c := copySnapshot(s)
	r.mu.Lock()
	r.snaps[c.Key()] = c
	r.mu.Unlock()
	return nil
}

// Get implements leaderboard.Repository.
func (r *LeaderboardRepo) Get(_ context.Context, key leaderboard.Key) (*leaderboard.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.snaps[key]
	if !ok {
		return nil, leaderboard.ErrSnapshotNotFound
	}
	return copySnapshot(s), nil
}

func copySnapshot(s *leaderboard.Snapshot) *leaderboard.Snapshot {
	return leaderboard.NewSnapshot(s.Key(), append([]leaderboard.Entry(nil), s.Rankings...), s.LastUpdated)
}
