package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
)

func (f *fixture) putStats(t *testing.T, id string, points, daysAgo int) {
	t.Helper()
	f.addUser(t, id, "student")
	s := stats.NewUserStats(id, now)
	s.TotalPoints = points
	s.Level = stats.LevelFor(points)
	s.Streaks = stats.Streaks{Current: 1, Longest: 1, LastActivity: now.AddDate(0, 0, -daysAgo)}
	f.store.Stats.Put(s)
}

func userIDs(entries []leaderboard.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}

func TestRebuild_OverallAllTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putStats(t, "A", 300, 0)
	f.putStats(t, "B", 150, 0)
	f.putStats(t, "C", 0, 0)

	snap, err := f.rebuild.Handle(ctx, RebuildLeaderboardCommand{Type: "overall", Period: "all-time"})
	require.NoError(t, err)

	require.Len(t, snap.Rankings, 2)
	assert.Equal(t, leaderboard.Entry{UserID: "A", Score: 300, Rank: 1, Metadata: snap.Rankings[0].Metadata}, snap.Rankings[0])
	assert.Equal(t, "B", snap.Rankings[1].UserID)
	assert.Equal(t, 2, snap.Rankings[1].Rank)
	assert.Equal(t, now, snap.LastUpdated)

	stored, err := f.store.Leaderboards.Get(ctx, leaderboard.Key{Type: leaderboard.TypeOverall, Period: leaderboard.PeriodAllTime})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, userIDs(stored.Rankings))
	assert.Equal(t, 1, f.events.count(shared.EventLeaderboardRebuilt))
}

func TestRebuild_TiesAreDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putStats(t, "zed", 100, 0)
	f.putStats(t, "amy", 100, 0)
	f.putStats(t, "max", 100, 0)

	first, err := f.rebuild.Rebuild(ctx, leaderboard.TypeOverall, leaderboard.PeriodAllTime)
	require.NoError(t, err)
	second, err := f.rebuild.Rebuild(ctx, leaderboard.TypeOverall, leaderboard.PeriodAllTime)
	require.NoError(t, err)

	assert.Equal(t, []string{"amy", "max", "zed"}, userIDs(first.Rankings))
	assert.Equal(t, first.Rankings, second.Rankings)
}

func TestRebuild_PeriodsFilterByLastActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putStats(t, "recent", 100, 1)
	f.putStats(t, "stale", 500, 10)

	weekly, err := f.rebuild.Rebuild(ctx, leaderboard.TypeOverall, leaderboard.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, []string{"recent"}, userIDs(weekly.Rankings))

	allTime, err := f.rebuild.Rebuild(ctx, leaderboard.TypeOverall, leaderboard.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale", "recent"}, userIDs(allTime.Rankings))
}

func TestRebuild_AllBoards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putStats(t, "A", 300, 0)

	snaps, err := f.rebuild.RebuildAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, len(leaderboard.AllKeys()))

	for _, key := range leaderboard.AllKeys() {
		_, err := f.store.Leaderboards.Get(ctx, key)
		assert.NoError(t, err, key.String())
	}
}

func TestRebuild_OverwritesPreviousRankings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putStats(t, "A", 300, 0)
	f.putStats(t, "B", 150, 0)

	_, err := f.rebuild.Rebuild(ctx, leaderboard.TypeOverall, leaderboard.PeriodAllTime)
	require.NoError(t, err)

	s, err := f.store.Stats.CreditPoints(ctx, "B", 200, "", now)
	require.NoError(t, err)
	require.Equal(t, 350, s.TotalPoints)

	snap, err := f.rebuild.Rebuild(ctx, leaderboard.TypeOverall, leaderboard.PeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, userIDs(snap.Rankings))
}

func TestRebuild_InvalidBoard(t *testing.T) {
	f := newFixture(t)
	_, err := f.rebuild.Handle(context.Background(), RebuildLeaderboardCommand{Type: "karma", Period: "all-time"})
	assert.True(t, shared.IsValidation(err))
}

func TestEnteredTop(t *testing.T) {
	key := leaderboard.Key{Type: leaderboard.TypeOverall, Period: leaderboard.PeriodAllTime}
	previous := leaderboard.NewSnapshot(key, []leaderboard.Entry{
		{UserID: "a", Rank: 1}, {UserID: "b", Rank: 2}, {UserID: "c", Rank: 3},
	}, now)
	next := leaderboard.NewSnapshot(key, []leaderboard.Entry{
		{UserID: "c", Rank: 1}, {UserID: "d", Rank: 2}, {UserID: "a", Rank: 3},
	}, now)

	assert.Equal(t, map[string]int{"c": 1, "d": 2}, enteredTop(previous, next, 2))
	assert.Nil(t, enteredTop(nil, next, 2))
}

// staleCache holds a mirrored snapshot but rejects writes.
type staleCache struct {
	mu    sync.Mutex
	snaps map[leaderboard.Key]*leaderboard.Snapshot
}

func (c *staleCache) Get(_ context.Context, key leaderboard.Key) (*leaderboard.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[key]
	if !ok {
		return nil, leaderboard.ErrSnapshotNotFound
	}
	return s, nil
}

func (c *staleCache) Set(context.Context, *leaderboard.Snapshot) error {
	return errors.New("cache write timeout")
}

func (c *staleCache) Invalidate(_ context.Context, key leaderboard.Key) error {
	c.mu.Lock()
	delete(c.snaps, key)
	c.mu.Unlock()
	return nil
}

func TestRebuild_FailedCacheWriteDropsMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.putStats(t, "A", 300, 0)

	key := leaderboard.Key{Type: leaderboard.TypeOverall, Period: leaderboard.PeriodAllTime}
	old := leaderboard.NewSnapshot(key, []leaderboard.Entry{{UserID: "gone", Score: 999, Rank: 1}}, now.AddDate(0, 0, -1))
	cache := &staleCache{snaps: map[leaderboard.Key]*leaderboard.Snapshot{key: old}}
	rebuild := NewRebuildLeaderboardHandler(f.store.Stats, f.store.Users, f.store.Leaderboards, cache, f.events, f.clock, nil, DefaultRebuildConfig())

	snap, err := rebuild.Rebuild(ctx, key.Type, key.Period)
	require.NoError(t, err, "cache failures do not fail the rebuild")
	assert.Equal(t, []string{"A"}, userIDs(snap.Rankings))

	_, err = cache.Get(ctx, key)
	assert.ErrorIs(t, err, leaderboard.ErrSnapshotNotFound)
}
