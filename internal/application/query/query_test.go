package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/achievement"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
)

var (
	now        = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	overallAll = leaderboard.Key{Type: leaderboard.TypeOverall, Period: leaderboard.PeriodAllTime}
)

type mapCache struct {
	mu    sync.Mutex
	snaps map[leaderboard.Key]*leaderboard.Snapshot
	fail  bool
}

func (c *mapCache) Get(_ context.Context, key leaderboard.Key) (*leaderboard.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	s, ok := c.snaps[key]
	if !ok {
		return nil, leaderboard.ErrSnapshotNotFound
	}
	return s, nil
}

func (c *mapCache) Set(_ context.Context, s *leaderboard.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.snaps[s.Key()] = s
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, key leaderboard.Key) error {
	c.mu.Lock()
	delete(c.snaps, key)
	c.mu.Unlock()
	return nil
}

func seedBoard(t *testing.T, repo *memory.LeaderboardRepo, n int) {
	t.Helper()
	rankings := make([]leaderboard.Entry, n)
	for i := range rankings {
		rankings[i] = leaderboard.Entry{UserID: string(rune('a' + i)), Score: float64(100 * (n - i)), Rank: i + 1}
	}
	require.NoError(t, repo.Save(context.Background(), leaderboard.NewSnapshot(overallAll, rankings, now)))
}

func TestGetLeaderboard_NeverBuiltIsEmpty(t *testing.T) {
	h := NewGetLeaderboardHandler(NewSnapshotReader(memory.NewLeaderboardRepo(), nil, nil), 10)

	view, err := h.Handle(context.Background(), GetLeaderboardQuery{Type: "mentorship", Period: "weekly"})
	require.NoError(t, err)
	assert.Empty(t, view.Rankings)
	assert.NotNil(t, view.Rankings)
	assert.True(t, view.LastUpdated.IsZero())
}

func TestGetLeaderboard_Limits(t *testing.T) {
	repo := memory.NewLeaderboardRepo()
	seedBoard(t, repo, 20)
	h := NewGetLeaderboardHandler(NewSnapshotReader(repo, nil, nil), 10)
	ctx := context.Background()

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 0, want: 10},
		{limit: 3, want: 3},
		{limit: 500, want: 20},
	}
	for _, tt := range tests {
		view, err := h.Handle(ctx, GetLeaderboardQuery{Type: "overall", Period: "all-time", Limit: tt.limit})
		require.NoError(t, err)
		assert.Len(t, view.Rankings, tt.want, "limit %d", tt.limit)
		assert.Equal(t, 1, view.Rankings[0].Rank)
	}

	_, err := h.Handle(ctx, GetLeaderboardQuery{Type: "overall", Period: "all-time", Limit: -1})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, GetLeaderboardQuery{Type: "overall", Period: "yearly"})
	assert.True(t, shared.IsValidation(err))
}

func TestSnapshotReader_ReadThroughCache(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLeaderboardRepo()
	seedBoard(t, repo, 2)
	cache := &mapCache{snaps: map[leaderboard.Key]*leaderboard.Snapshot{}}
	reader := NewSnapshotReader(repo, cache, nil)

	_, err := reader.Load(ctx, overallAll)
	require.NoError(t, err)
	assert.Contains(t, cache.snaps, overallAll)

	cache.fail = true
	snap, err := reader.Load(ctx, overallAll)
	require.NoError(t, err, "cache failure falls back to storage")
	assert.Len(t, snap.Rankings, 2)
}

func TestGetUserRank(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLeaderboardRepo()
	require.NoError(t, repo.Save(ctx, leaderboard.NewSnapshot(overallAll, []leaderboard.Entry{
		{UserID: "A", Score: 300, Rank: 1},
		{UserID: "B", Score: 150, Rank: 2},
	}, now)))
	h := NewGetUserRankHandler(NewSnapshotReader(repo, nil, nil), nil)

	rank, err := h.Handle(ctx, GetUserRankQuery{UserID: "B", Type: "overall", Period: "all-time"})
	require.NoError(t, err)
	assert.Equal(t, &leaderboard.UserRank{Rank: 2, Score: 150}, rank)

	rank, err = h.Handle(ctx, GetUserRankQuery{UserID: "C", Type: "overall", Period: "all-time"})
	require.NoError(t, err)
	assert.Nil(t, rank)

	_, err = h.Handle(ctx, GetUserRankQuery{Type: "overall", Period: "all-time"})
	assert.True(t, shared.IsValidation(err))
}

type stubIndex struct {
	rank *leaderboard.UserRank
	err  error
}

func (s stubIndex) RankOf(context.Context, leaderboard.Key, string) (*leaderboard.UserRank, error) {
	return s.rank, s.err
}

func TestGetUserRank_IndexFirst(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewLeaderboardRepo()
	require.NoError(t, repo.Save(ctx, leaderboard.NewSnapshot(overallAll, []leaderboard.Entry{
		{UserID: "A", Score: 300, Rank: 1},
	}, now)))
	q := GetUserRankQuery{UserID: "A", Type: "overall", Period: "all-time"}

	h := NewGetUserRankHandler(NewSnapshotReader(repo, nil, nil), stubIndex{rank: &leaderboard.UserRank{Rank: 7, Score: 1}})
	rank, err := h.Handle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 7, rank.Rank, "answer comes from the index")

	h = NewGetUserRankHandler(NewSnapshotReader(repo, nil, nil), stubIndex{err: leaderboard.ErrSnapshotNotFound})
	rank, err = h.Handle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank, "index miss falls back to the snapshot")

	h = NewGetUserRankHandler(NewSnapshotReader(repo, nil, nil), stubIndex{err: errors.New("redis down")})
	rank, err = h.Handle(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank)
}

func TestGetAvailableSlots(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewMentorshipRepo()
	require.NoError(t, repo.SaveAvailability(ctx, &mentorship.Availability{
		MentorID: "m1",
		WeeklySchedule: []mentorship.DaySchedule{{
			Day: "monday",
			TimeSlots: []mentorship.TimeSlot{
				{StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
				{StartTime: "09:00", EndTime: "10:00", IsAvailable: true},
			},
		}},
		Exceptions: []mentorship.Exception{
			{Date: "2026-11-02", IsAvailable: false},
		},
		Timezone:          "UTC",
		MaxSessionsPerDay: 8,
		SessionDuration:   60,
	}))
	require.NoError(t, repo.InsertSession(ctx, &mentorship.Session{
		ID: "s-1", MentorID: "m1", MenteeID: "u1", SlotDate: "2026-10-26", StartTime: "10:00", Status: mentorship.StatusConfirmed,
	}, mentorship.WriteGuard{}))
	h := NewGetAvailableSlotsHandler(repo)

	slots, err := h.Handle(ctx, GetAvailableSlotsQuery{MentorID: "m1", Date: "2026-10-26"})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "09:00", slots[0].StartTime)

	slots, err = h.Handle(ctx, GetAvailableSlotsQuery{MentorID: "m1", Date: "2026-11-02"})
	require.NoError(t, err)
	assert.Empty(t, slots, "unavailable exception")

	slots, err = h.Handle(ctx, GetAvailableSlotsQuery{MentorID: "m1", Date: "2026-10-27"})
	require.NoError(t, err)
	assert.Empty(t, slots, "no template for tuesday")

	_, err = h.Handle(ctx, GetAvailableSlotsQuery{MentorID: "nobody", Date: "2026-10-26"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, GetAvailableSlotsQuery{MentorID: "m1", Date: "26/10/2026"})
	assert.True(t, shared.IsValidation(err))
}

func TestUserReadHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	catalog := badge.DefaultCatalog()
	require.NoError(t, store.Users.Upsert(ctx, &user.User{ID: "u1", Name: "Ada"}))
	h := NewUserReadHandler(store.Users, store.Stats, store.Achievements, store.Notifications, catalog)

	s, err := h.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Level)

	_, err = h.Stats(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err))

	first, ok := catalog.ByName("First Mentor")
	require.True(t, ok)
	_, err = store.Achievements.InsertIfAbsent(ctx, achievement.NewCompleted("a1", "u1", first.ID, 1, now))
	require.NoError(t, err)

	views, err := h.Achievements(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Badge)
	assert.Equal(t, "First Mentor", views[0].Badge.Name)

	assert.Len(t, h.Badges(), catalog.Len())
}
