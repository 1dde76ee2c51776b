package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
)

// StatsRepo implements stats.Repository.
type StatsRepo struct {
	mu   sync.Mutex
	rows map[string]*stats.UserStats
}

// NewStatsRepo creates an empty repository.
func NewStatsRepo() *StatsRepo {
	return &StatsRepo{rows: make(map[string]*stats.UserStats)}
}

// Get implements stats.Repository.
func (r *StatsRepo) Get(_ context.Context, userID string) (*stats.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[userID]
	if !ok {
		return nil, stats.ErrStatsNotFound
	}
	return s.Clone(), nil
}

// ApplyActivity implements stats.Repository.
func (r *StatsRepo) ApplyActivity(_ context.Context, userID string, kind stats.ActivityKind, at time.Time) (*stats.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[userID]
	if !ok {
		s = stats.NewUserStats(userID, at)
	}
	if !s.Apply(kind, at) {
		return nil, shared.ValidationError("stats", "ApplyActivity", "unknown activity kind %q", kind)
	}
	r.rows[userID] = s
	return s.Clone(), nil
}

// CreditPoints implements stats.Repository.
func (r *StatsRepo) CreditPoints(_ context.Context, userID string, points int, category stats.Counter, at time.Time) (*stats.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[userID]
	if !ok {
		s = stats.NewUserStats(userID, at)
		r.rows[userID] = s
	}
	s.Credit(points, category, at)
	return s.Clone(), nil
}

// ListActiveSince implements stats.Repository. Rows are ordered by user id.
func (r *StatsRepo) ListActiveSince(_ context.Context, since time.Time) ([]*stats.UserStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*stats.UserStats, 0, len(r.rows))
	for _, s := range r.rows {
		if !since.IsZero() && s.Streaks.LastActivity.Before(since) {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Put stores s verbatim. Used for seeding.
func (r *StatsRepo) Put(s *stats.UserStats) {
	r.mu.Lock()
	r.rows[s.UserID] = s.Clone()
	r.mu.Unlock()
}
