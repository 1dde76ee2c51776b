package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
)

var t0 = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

// countingRepo counts Get calls and can block them.
type countingRepo struct {
	stats.Repository
	gets    atomic.Int32
	release chan struct{}
}

func (r *countingRepo) Get(ctx context.Context, userID string) (*stats.UserStats, error) {
	r.gets.Add(1)
	if r.release != nil {
		<-r.release
	}
	return r.Repository.Get(ctx, userID)
}

func newCached(t *testing.T) (*CachedStatsRepository, *countingRepo) {
	t.Helper()
	inner := &countingRepo{Repository: memory.NewStatsRepo()}
	return NewCachedStatsRepository(inner, StatsCacheConfig{Size: 16, TTL: time.Minute}, nil), inner
}

func TestCachedStats_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCached(t)

	_, err := repo.ApplyActivity(ctx, "u1", stats.ActivityProjectCreated, t0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s, err := repo.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, s.ProjectsCreated)
	}
	assert.Equal(t, int32(1), inner.gets.Load())
	assert.Equal(t, 1, repo.Len())
}

func TestCachedStats_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCached(t)

	_, err := repo.ApplyActivity(ctx, "u1", stats.ActivityMentorshipSession, t0)
	require.NoError(t, err)
	_, err = repo.Get(ctx, "u1")
	require.NoError(t, err)

	_, err = repo.ApplyActivity(ctx, "u1", stats.ActivityMentorshipSession, t0)
	require.NoError(t, err)
	s, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.MentorshipSessions)

	_, err = repo.CreditPoints(ctx, "u1", 150, stats.CounterMentorshipScore, t0)
	require.NoError(t, err)
	s, err = repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 150, s.TotalPoints)
	assert.Equal(t, 2, s.Level)
}

func TestCachedStats_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, _ := newCached(t)
	_, err := repo.ApplyActivity(ctx, "u1", stats.ActivityEventAttended, t0)
	require.NoError(t, err)

	s, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	s.EventsAttended = 99

	again, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.EventsAttended)
}

func TestCachedStats_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCached(t)

	_, err := repo.Get(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err))
	_, err = repo.Get(ctx, "ghost")
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, int32(2), inner.gets.Load())
}

func TestCachedStats_ConcurrentMissesCollapse(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCached(t)
	_, err := repo.ApplyActivity(ctx, "u1", stats.ActivityTeamJoined, t0)
	require.NoError(t, err)

	inner.release = make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := repo.Get(ctx, "u1")
			assert.NoError(t, err)
			assert.Equal(t, 1, s.TeamsJoined)
		}()
	}
	require.Eventually(t, func() bool { return inner.gets.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), inner.gets.Load())
}

func TestCachedStats_WriteDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo, inner := newCached(t)
	_, err := repo.ApplyActivity(ctx, "u1", stats.ActivityTeamLed, t0)
	require.NoError(t, err)

	inner.release = make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = repo.Get(ctx, "u1")
	}()
	require.Eventually(t, func() bool { return inner.gets.Load() == 1 }, time.Second, time.Millisecond)

	repo.Invalidate("u1")
	close(inner.release)
	<-done

	assert.Equal(t, 0, repo.Len(), "a load overtaken by a write is discarded")
}
