package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/app"
	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func newTestCore(t *testing.T) *app.Core {
	t.Helper()
	ctx := context.Background()
	clock := timeutil.FixedClock{T: now}
	core := app.NewCore(app.MemoryRepositories(memory.NewStore(clock)), app.Options{Clock: clock})

	for _, id := range []string{"alice", "bob", "mentor-1"} {
		require.NoError(t, core.Repos.Users.Upsert(ctx, &user.User{ID: id, Name: id, Role: "student", CreatedAt: now}))
	}
	for _, id := range []string{"bob", "alice", "bob"} {
		_, err := core.Track.Handle(ctx, command.TrackActivityCommand{UserID: id, Kind: "project_created"})
		require.NoError(t, err)
	}
	return core
}

func run(t *testing.T, core *app.Core, args ...string) (string, error) {
	t.Helper()
	opener := func(context.Context, app.OpenOptions) (*app.Runtime, error) {
		return &app.Runtime{Core: core, Log: logger.Nop()}, nil
	}
	root := NewRootCommand(opener)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRebuildThenLeaderboard(t *testing.T) {
	core := newTestCore(t)

	out, err := run(t, core, "rebuild", "--type", "projects", "--period", "all-time")
	require.NoError(t, err)
	assert.Contains(t, out, "projects")

	out, err = run(t, core, "leaderboard", "projects", "all-time")
	require.NoError(t, err)
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "alice")

	out, err = run(t, core, "rank", "bob", "--type", "projects", "--json")
	require.NoError(t, err)
	var rank struct{ Rank int }
	require.NoError(t, json.Unmarshal([]byte(out), &rank))
	assert.Equal(t, 1, rank.Rank)

	out, err = run(t, core, "rank", "mentor-1", "--type", "projects")
	require.NoError(t, err)
	assert.Contains(t, out, "not ranked")
}

func TestRebuild_AllBoards(t *testing.T) {
	core := newTestCore(t)
	out, err := run(t, core, "rebuild", "--json")
	require.NoError(t, err)

	var snaps []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	assert.Len(t, snaps, 12)
}

func TestRebuild_PeriodNeedsType(t *testing.T) {
	_, err := run(t, newTestCore(t), "rebuild", "--period", "weekly")
	assert.Error(t, err)
}

func TestLeaderboard_NotBuilt(t *testing.T) {
	out, err := run(t, newTestCore(t), "leaderboard", "overall", "weekly")
	require.NoError(t, err)
	assert.Contains(t, out, "has not been built yet")
}

func TestSeedBadges_FromFile(t *testing.T) {
	core := newTestCore(t)
	path := filepath.Join(t.TempDir(), "badges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`badges:
  - name: Night Owl
    description: Attend ten events.
    category: event
    rarity: epic
    points: 80
    criteria: { type: count, metric: eventsAttended, target: 10 }
`), 0o600))

	out, err := run(t, core, "seed-badges", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted 1 of 1 badges")
	assert.Contains(t, out, "Night Owl")

	out, err = run(t, core, "seed-badges", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted 0 of 1 badges")
}

func TestSlots(t *testing.T) {
	core := newTestCore(t)
	_, err := core.SetAvailability.Handle(context.Background(), command.SetAvailabilityCommand{
		MentorID: "mentor-1",
		WeeklySchedule: []mentorship.DaySchedule{{
			Day:       "monday",
			TimeSlots: []mentorship.TimeSlot{{StartTime: "09:00", EndTime: "10:00", IsAvailable: true}},
		}},
	})
	require.NoError(t, err)

	out, err := run(t, core, "slots", "mentor-1", "--date", "2026-10-26")
	require.NoError(t, err)
	assert.Contains(t, out, "09:00")

	_, err = run(t, core, "slots", "nobody", "--date", "2026-10-26")
	assert.Error(t, err)
}

func TestMigrate_MemoryDriver(t *testing.T) {
	_, err := run(t, newTestCore(t), "migrate")
	assert.ErrorIs(t, err, app.ErrNoDatabase)
}
