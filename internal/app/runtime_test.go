package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/application/query"
	"github.com/campus-connect/campus-core/internal/domain/user"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set("STORAGE_DRIVER", "memory")
	v.Set("REDIS_DISABLED", true)
	cfg, err := config.FromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestOpen_MemoryDriver(t *testing.T) {
	ctx := context.Background()
	rt, err := Open(ctx, memoryConfig(t), nil, OpenOptions{Events: true})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.DB)
	assert.Nil(t, rt.Migrator())
	assert.Nil(t, rt.Redis)
	require.NotNil(t, rt.Dispatcher)
	assert.Positive(t, rt.Core.Catalog.Len())

	require.NoError(t, rt.Core.Repos.Users.Upsert(ctx, &user.User{ID: "u1", Name: "U", Role: "student", CreatedAt: time.Now()}))
	res, err := rt.Core.Track.Handle(ctx, command.TrackActivityCommand{UserID: "u1", Kind: "project_created"})
	require.NoError(t, err)
	require.NotEmpty(t, res.NewBadges)

	// The award-driven rebuild runs on the asynchronous bus.
	assert.Eventually(t, func() bool {
		view, err := rt.Core.Leaderboard.Handle(ctx, query.GetLeaderboardQuery{Type: "projects", Period: "all-time"})
		return err == nil && len(view.Rankings) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOpen_WithoutEvents(t *testing.T) {
	rt, err := Open(context.Background(), memoryConfig(t), nil, OpenOptions{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Bus)
	assert.Nil(t, rt.Dispatcher)
}
