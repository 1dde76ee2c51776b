package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/campus-connect/campus-core/internal/domain/achievement"
)

type pairKey struct {
	userID  string
	badgeID string
}

// AchievementRepo implements achievement.Repository.
type AchievementRepo struct {
	mu     sync.Mutex
	byPair map[pairKey]*achievement.Achievement
}

// NewAchievementRepo creates an empty repository.
func NewAchievementRepo() *AchievementRepo {
	return &AchievementRepo{byPair: make(map[pairKey]*achievement.Achievement)}
}

// InsertIfAbsent implements achievement.Repository.
func (r *AchievementRepo) InsertIfAbsent(_ context.Context, a *achievement.Achievement) (bool, error) {
	key := pairKey{userID: a.UserID, badgeID: a.BadgeID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPair[key]; ok {
		return false, nil
	}
	c := *a
	r.byPair[key] = &c
	return true, nil
}

// EarnedBadgeIDs implements achievement.Repository.
func (r *AchievementRepo) EarnedBadgeIDs(_ context.Context, userID string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]struct{})
	for k := range r.byPair {
		if k.userID == userID {
			out[k.badgeID] = struct{}{}
		}
	}
	return out, nil
}

// ListByUser implements achievement.Repository.
func (r *AchievementRepo) ListByUser(_ context.Context, userID string) ([]*achievement.Achievement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*achievement.Achievement, 0)
	for k, a := range r.byPair {
		if k.userID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.After(out[j].EarnedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

// Count returns the number of stored achievements.
func (r *AchievementRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPair)
}
