package command

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/application/saga"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// now is a Monday.
var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count(t shared.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t shared.EventType) shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == t {
			return r.events[i]
		}
	}
	return nil
}

func sequentialIDs() shared.IDGenerator {
	var n atomic.Int64
	return shared.IDFunc(func() string { return fmt.Sprintf("id-%d", n.Add(1)) })
}

type fixture struct {
	store    *memory.Store
	events   *recorder
	clock    timeutil.Clock
	ids      shared.IDGenerator
	evaluate *EvaluateBadgesHandler
	track    *TrackActivityHandler
	rebuild  *RebuildLeaderboardHandler
	sessions SessionDeps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(timeutil.FixedClock{T: now}),
		events: &recorder{},
		clock:  timeutil.FixedClock{T: now},
		ids:    sequentialIDs(),
	}

	flow := saga.NewAwardFlowSaga(saga.AwardFlowDeps{
		Catalog:      badge.DefaultCatalog(),
		Achievements: f.store.Achievements,
		Stats:        f.store.Stats,
		Notifier:     f.store.Notifications,
		Events:       f.events,
		IDs:          f.ids,
		Clock:        f.clock,
	}, saga.DefaultAwardFlowConfig())

	f.evaluate = NewEvaluateBadgesHandler(flow, f.store.Stats, f.store.Users, f.events, nil, nil)
	f.track = NewTrackActivityHandler(f.store.Users, f.store.Stats, f.evaluate, f.events, nil, f.clock, nil)
	f.rebuild = NewRebuildLeaderboardHandler(f.store.Stats, f.store.Users, f.store.Leaderboards, nil, f.events, f.clock, nil, DefaultRebuildConfig())
	f.sessions = SessionDeps{
		Sessions: f.store.Mentorship,
		Users:    f.store.Users,
		Notifier: f.store.Notifications,
		Events:   f.events,
		IDs:      f.ids,
		Clock:    f.clock,
	}
	return f
}

func (f *fixture) addUser(t *testing.T, id, role string) {
	t.Helper()
	require.NoError(t, f.store.Users.Upsert(context.Background(), &user.User{ID: id, Name: id, Role: role, CreatedAt: now}))
}
