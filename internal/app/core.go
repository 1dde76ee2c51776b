// Package app assembles the Campus Connect core from repositories and
// infrastructure adapters. The api, worker and campusctl binaries and the
// HTTP tests all build their handlers through NewCore.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/application/eventhandler"
	"github.com/campus-connect/campus-core/internal/application/query"
	"github.com/campus-connect/campus-core/internal/application/saga"
	"github.com/campus-connect/campus-core/internal/domain/achievement"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/internal/infrastructure/messaging"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/postgres"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

// Repositories is one implementation of every storage port.
type Repositories struct {
	Stats         stats.Repository
	Users         user.Repository
	Badges        badge.Repository
	Achievements  achievement.Repository
	Leaderboards  leaderboard.Repository
	Notifications notification.Repository
	Mentorship    mentorship.Repository
}

// MemoryRepositories exposes a memory.Store as Repositories.
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Stats:         store.Stats,
		Users:         store.Users,
		Badges:        store.Badges,
		Achievements:  store.Achievements,
		Leaderboards:  store.Leaderboards,
		Notifications: store.Notifications,
		Mentorship:    store.Mentorship,
	}
}

// PostgresRepositories builds every repository over one pool.
func PostgresRepositories(conn *postgres.Connection) Repositories {
	return Repositories{
		Stats:         postgres.NewStatsRepository(conn),
		Users:         postgres.NewUserRepository(conn),
		Badges:        postgres.NewBadgeRepository(conn),
		Achievements:  postgres.NewAchievementRepository(conn),
		Leaderboards:  postgres.NewLeaderboardRepository(conn),
		Notifications: postgres.NewNotificationRepository(conn),
		Mentorship:    postgres.NewMentorshipRepository(conn),
	}
}

// UUIDs generates random v4 identifiers.
var UUIDs shared.IDGenerator = shared.IDFunc(uuid.NewString)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// SeedCatalog upserts seed into repo and builds the catalog from what the
// repository holds afterwards. Existing rows win over the seed, so edited
// badges survive a restart.
func SeedCatalog(ctx context.Context, repo badge.Repository, seed []*badge.Badge) (*badge.Catalog, int, error) {
	inserted, err := repo.Upsert(ctx, seed)
	if err != nil {
		return nil, 0, fmt.Errorf("seed badges: %w", err)
	}
	all, err := repo.List(ctx)
	if err != nil {
		return nil, inserted, fmt.Errorf("list badges: %w", err)
	}
	catalog, err := badge.NewCatalog(all)
	if err != nil {
		return nil, inserted, fmt.Errorf("build catalog: %w", err)
	}
	return catalog, inserted, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CORE
// ══════════════════════════════════════════════════════════════════════════════

// Options tunes NewCore. Zero values select defaults; SnapshotCache and
// RankIndex are optional.
type Options struct {
	Catalog       *badge.Catalog
	SnapshotCache leaderboard.SnapshotCache
	RankIndex     query.RankIndex
	Events        shared.EventPublisher
	Features      *config.FeatureFlags
	Clock         timeutil.Clock
	IDs           shared.IDGenerator
	Logger        *logger.Logger
	Rebuild       command.RebuildConfig
	DefaultLimit  int
}

// Core holds every command and query handler.
type Core struct {
	Repos    Repositories
	Catalog  *badge.Catalog
	Features *config.FeatureFlags

	// Commands
	Evaluate          *command.EvaluateBadgesHandler
	Track             *command.TrackActivityHandler
	Rebuild           *command.RebuildLeaderboardHandler
	SetAvailability   *command.SetAvailabilityHandler
	ScheduleSession   *command.ScheduleSessionHandler
	RescheduleSession *command.RescheduleSessionHandler
	UpdateSession     *command.UpdateSessionStatusHandler

	// Queries
	Snapshots      *query.SnapshotReader
	Leaderboard    *query.GetLeaderboardHandler
	UserRank       *query.GetUserRankHandler
	AvailableSlots *query.GetAvailableSlotsHandler
	UserReads      *query.UserReadHandler

	ids shared.IDGenerator
	log *logger.Logger
}

// NewCore wires the handlers over repos.
func NewCore(repos Repositories, opts Options) *Core {
	if opts.Catalog == nil {
		opts.Catalog = badge.DefaultCatalog()
	}
	if opts.Events == nil {
		opts.Events = shared.NopPublisher{}
	}
	if opts.Features == nil {
		opts.Features = config.DefaultFeatureFlags()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = UUIDs
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	c := &Core{
		Repos:    repos,
		Catalog:  opts.Catalog,
		Features: opts.Features,
		ids:      opts.IDs,
		log:      opts.Logger,
	}

	flow := saga.NewAwardFlowSaga(saga.AwardFlowDeps{
		Catalog:      opts.Catalog,
		Achievements: repos.Achievements,
		Stats:        repos.Stats,
		Notifier:     repos.Notifications,
		Events:       opts.Events,
		IDs:          opts.IDs,
		Features:     opts.Features,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
	}, saga.DefaultAwardFlowConfig())

	c.Evaluate = command.NewEvaluateBadgesHandler(flow, repos.Stats, repos.Users, opts.Events, opts.Features, opts.Logger)
	c.Track = command.NewTrackActivityHandler(repos.Users, repos.Stats, c.Evaluate, opts.Events, opts.Features, opts.Clock, opts.Logger)
	c.Rebuild = command.NewRebuildLeaderboardHandler(repos.Stats, repos.Users, repos.Leaderboards, opts.SnapshotCache,
		opts.Events, opts.Clock, opts.Logger, opts.Rebuild)

	sessions := command.SessionDeps{
		Sessions: repos.Mentorship,
		Users:    repos.Users,
		Notifier: repos.Notifications,
		Events:   opts.Events,
		IDs:      opts.IDs,
		Features: opts.Features,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	}
	c.SetAvailability = command.NewSetAvailabilityHandler(sessions)
	c.ScheduleSession = command.NewScheduleSessionHandler(sessions)
	c.RescheduleSession = command.NewRescheduleSessionHandler(sessions)
	c.UpdateSession = command.NewUpdateSessionStatusHandler(sessions, c.Track)

	c.Snapshots = query.NewSnapshotReader(repos.Leaderboards, opts.SnapshotCache, opts.Logger)
	c.Leaderboard = query.NewGetLeaderboardHandler(c.Snapshots, opts.DefaultLimit)
	c.UserRank = query.NewGetUserRankHandler(c.Snapshots, opts.RankIndex)
	c.AvailableSlots = query.NewGetAvailableSlotsHandler(repos.Mentorship)
	c.UserReads = query.NewUserReadHandler(repos.Users, repos.Stats, repos.Achievements, repos.Notifications, opts.Catalog)
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// EventConfig tunes the asynchronous handlers.
type EventConfig struct {
	RefreshTimeout time.Duration
	RankChanged    eventhandler.RankChangedConfig
}

// DefaultEventConfig returns a one minute rebuild timeout and the default
// announced boards.
func DefaultEventConfig() EventConfig {
	return EventConfig{
		RefreshTimeout: time.Minute,
		RankChanged:    eventhandler.DefaultRankChangedConfig(),
	}
}

// RegisterEventHandlers attaches the award-driven rebuild and the top-of-board
// notifier to d.
func (c *Core) RegisterEventHandlers(d *messaging.Dispatcher, cfg EventConfig) error {
	refresh := eventhandler.NewOnRefreshRequestedHandler(c.Rebuild, cfg.RefreshTimeout, c.log)
	if err := d.Register(shared.EventLeaderboardRefreshRequested, "rebuild_on_refresh", refresh.Handle); err != nil {
		return err
	}
	ranked := eventhandler.NewOnRankChangedHandler(c.Repos.Notifications, c.ids, c.Features, c.log, cfg.RankChanged)
	if err := d.Register(shared.EventLeaderboardRebuilt, "notify_rank_changed", ranked.Handle); err != nil {
		return err
	}
	return nil
}
