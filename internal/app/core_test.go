package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/application/query"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/internal/infrastructure/messaging"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
)

func TestSeedCatalog_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)

	catalog, inserted, err := SeedCatalog(ctx, store.Badges, badge.DefaultBadges())
	require.NoError(t, err)
	assert.Equal(t, len(badge.DefaultBadges()), inserted)
	assert.Equal(t, len(badge.DefaultBadges()), catalog.Len())

	catalog, inserted, err = SeedCatalog(ctx, store.Badges, badge.DefaultBadges())
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Equal(t, len(badge.DefaultBadges()), catalog.Len())
}

func TestCore_AwardRefreshesLeaderboards(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{WorkerPoolSize: 16})
	dcfg := messaging.DefaultDispatcherConfig(bus)
	dcfg.WorkerPoolSize = 16
	dispatcher := messaging.NewDispatcher(dcfg)
	defer dispatcher.Stop()

	core := NewCore(MemoryRepositories(store), Options{Events: bus})
	require.NoError(t, core.RegisterEventHandlers(dispatcher, DefaultEventConfig()))
	require.NoError(t, dispatcher.Start())

	for _, u := range []*user.User{
		{ID: "student-1", Name: "Student", Role: "student", CreatedAt: time.Now()},
		{ID: "mentor-1", Name: "Mentor", Role: "mentor", CreatedAt: time.Now()},
	} {
		require.NoError(t, store.Users.Upsert(ctx, u))
	}

	// The first award builds every board; nobody is announced on a first build.
	_, err := core.Track.Handle(ctx, command.TrackActivityCommand{UserID: "student-1", Kind: "project_created"})
	require.NoError(t, err)

	view, err := core.Leaderboard.Handle(ctx, query.GetLeaderboardQuery{Type: "overall", Period: "all-time"})
	require.NoError(t, err)
	require.Len(t, view.Rankings, 1)
	assert.Equal(t, "student-1", view.Rankings[0].UserID)

	res, err := core.Track.Handle(ctx, command.TrackActivityCommand{UserID: "mentor-1", Kind: "mentorship_session"})
	require.NoError(t, err)
	require.NotEmpty(t, res.NewBadges)

	rank, err := core.UserRank.Handle(ctx, query.GetUserRankQuery{UserID: "mentor-1", Type: "mentorship", Period: "all-time"})
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 1, rank.Rank)

	notes, err := store.Notifications.ListByRecipient(ctx, "mentor-1", 10)
	require.NoError(t, err)
	var types []notification.Type
	for _, n := range notes {
		types = append(types, n.Type)
	}
	assert.Contains(t, types, notification.TypeAchievement)
	assert.Contains(t, types, notification.TypeLeaderboard)
}
