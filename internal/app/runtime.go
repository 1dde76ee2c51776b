package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/domain/badge"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/infrastructure/cache"
	"github.com/campus-connect/campus-core/internal/infrastructure/messaging"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/memory"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/postgres"
	"github.com/campus-connect/campus-core/internal/infrastructure/persistence/redis"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUNTIME
// Connects storage, the optional Redis mirror and the event bus described by
// a Config, and builds a Core over them.
// ══════════════════════════════════════════════════════════════════════════════

// OpenOptions selects what a binary needs.
type OpenOptions struct {
	// Events starts an event bus and dispatcher with the asynchronous
	// handlers registered. Without it events are dropped.
	Events bool

	// Migrate applies migrations regardless of DB_AUTO_MIGRATE.
	Migrate bool
}

// Runtime is a connected Core. Close releases everything Open acquired.
type Runtime struct {
	Config *config.Config
	Core   *Core
	Log    *logger.Logger

	// DB is nil for the memory driver.
	DB *postgres.Connection

	// Redis and Snapshots are nil when Redis is disabled or unreachable.
	Redis     *redis.Cache
	Snapshots *redis.SnapshotCache

	Bus        shared.EventBus
	Dispatcher *messaging.Dispatcher

	closers []func()
}

// Open connects every dependency named by cfg. PostgreSQL is required when
// selected; Redis failures only disable the mirror.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, opts OpenOptions) (*Runtime, error) {
	if log == nil {
		log = logger.Nop()
	}
	rt := &Runtime{Config: cfg, Log: log}
	if err := rt.open(ctx, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, opts OpenOptions) error {
	cfg, log := rt.Config, rt.Log

	repos, err := rt.openStorage(ctx, opts.Migrate)
	if err != nil {
		return err
	}
	rt.openRedis(ctx)

	var events shared.EventPublisher = shared.NopPublisher{}
	if opts.Events {
		rt.Bus = rt.openBus()
		events = rt.Bus
	}

	catalog, inserted, err := SeedCatalog(ctx, repos.Badges, badge.DefaultBadges())
	if err != nil {
		return err
	}
	log.Info("badge catalog loaded", logger.Int("badges", catalog.Len()), logger.Int("seeded", inserted))

	repos.Stats = cache.NewCachedStatsRepository(repos.Stats, cache.StatsCacheConfig{
		Size: cfg.Cache.StatsSize,
		TTL:  cfg.Cache.StatsTTL,
	}, log)

	coreOpts := Options{
		Catalog:  catalog,
		Events:   events,
		Features: cfg.Features,
		Logger:   log,
		Rebuild: command.RebuildConfig{
			MaxEntries:  cfg.Leaderboard.MaxEntries,
			Concurrency: cfg.Leaderboard.RebuildConcurrency,
		},
		DefaultLimit: cfg.Leaderboard.DefaultLimit,
	}
	if rt.Snapshots != nil {
		coreOpts.SnapshotCache = rt.Snapshots
		coreOpts.RankIndex = rt.Snapshots
	}
	rt.Core = NewCore(repos, coreOpts)

	if opts.Events {
		return rt.startDispatcher()
	}
	return nil
}

func (rt *Runtime) openStorage(ctx context.Context, migrate bool) (Repositories, error) {
	cfg := rt.Config
	if cfg.App.StorageDriver == "memory" {
		rt.Log.Warn("using in-memory storage; data is lost on exit")
		return MemoryRepositories(memory.NewStore(nil)), nil
	}

	pgCfg := postgres.DefaultConfig(cfg.Database.URL)
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	}, append(retry.StartupOptions(), retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		rt.Log.Warn("database not ready", logger.Int("attempt", attempt), logger.Duration("backoff", delay), logger.Err(err))
	}))...)
	if err != nil {
		return Repositories{}, fmt.Errorf("connect database: %w", err)
	}
	rt.DB = conn
	rt.closers = append(rt.closers, conn.Close)
	rt.Log.Info("database connection established")

	if migrate || cfg.Database.AutoMigrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			return Repositories{}, fmt.Errorf("migrate: %w", err)
		}
		rt.Log.Info("database schema is up to date", logger.Int("applied", applied))
	}
	return PostgresRepositories(conn), nil
}

func (rt *Runtime) openRedis(ctx context.Context) {
	cfg := rt.Config.Redis
	if cfg.Disabled {
		rt.Log.Info("redis disabled; leaderboards are served from the database")
		return
	}

	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}

	rcache, err := redis.NewCache(ctx, rc, rt.Log)
	if err != nil {
		rt.Log.Warn("redis unavailable; snapshot mirror disabled", logger.Err(err))
		return
	}
	rt.Redis = rcache
	rt.closers = append(rt.closers, func() { _ = rcache.Close() })
	rt.Snapshots = redis.NewSnapshotCache(rcache.Client(), redis.SnapshotCacheConfig{
		TTL: rt.Config.Leaderboard.SnapshotTTL,
	}, rt.Log)
	rt.Log.Info("redis connection established", logger.String("addr", rc.Addr()))
}

// openBus fans events across processes through Redis when it is connected
// and stays in-process otherwise.
func (rt *Runtime) openBus() shared.EventBus {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = rt.Log

	if rt.Redis != nil {
		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(rt.Redis.Client()),
			LocalBusConfig: local,
			Logger:         rt.Log,
		})
		if err == nil {
			rt.closers = append(rt.closers, func() { _ = bus.Close() })
			return bus
		}
		rt.Log.Warn("redis event bus unavailable; using in-process bus", logger.Err(err))
	}

	bus := messaging.NewInMemoryEventBus(local)
	rt.closers = append(rt.closers, func() { _ = bus.Close() })
	return bus
}

func (rt *Runtime) startDispatcher() error {
	dcfg := messaging.DefaultDispatcherConfig(rt.Bus)
	dcfg.Logger = rt.Log
	d := messaging.NewDispatcher(dcfg)
	d.Use(messaging.RecoveryMiddleware(rt.Log))
	d.Use(messaging.LoggingMiddleware(rt.Log))

	if err := rt.Core.RegisterEventHandlers(d, DefaultEventConfig()); err != nil {
		return fmt.Errorf("register event handlers: %w", err)
	}
	if err := d.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	rt.Dispatcher = d
	rt.closers = append(rt.closers, d.Stop)
	return nil
}

// Migrator returns the schema migrator, or nil for the memory driver.
func (rt *Runtime) Migrator() *postgres.Migrator {
	if rt.DB == nil {
		return nil
	}
	return postgres.NewMigrator(rt.DB)
}

// ErrNoDatabase is returned by operations that need PostgreSQL.
var ErrNoDatabase = errors.New("no database: storage driver is memory")

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
