package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD COMMAND
// Recomputes snapshots from authoritative stats. Every rebuild overwrites
// the stored rankings of its (type, period).
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardCommand selects one board.
type RebuildLeaderboardCommand struct {
	Type   string `validate:"required"`
	Period string `validate:"required"`
}

// RebuildConfig tunes rebuilds.
type RebuildConfig struct {
	MaxEntries  int
	Concurrency int

	// TopNotify is the rank threshold reported as "entered top" in the
	// rebuilt event.
	TopNotify int
}

// DefaultRebuildConfig returns default configuration.
func DefaultRebuildConfig() RebuildConfig {
	return RebuildConfig{
		MaxEntries:  leaderboard.MaxEntries,
		Concurrency: 4,
		TopNotify:   10,
	}
}

// RebuildLeaderboardHandler rebuilds snapshots.
type RebuildLeaderboardHandler struct {
	stats  stats.Repository
	users  user.Repository
	boards leaderboard.Repository
	cache  leaderboard.SnapshotCache
	events shared.EventPublisher
	clock  timeutil.Clock
	log    *logger.Logger
	cfg    RebuildConfig
}

// NewRebuildLeaderboardHandler creates the handler. cache may be nil.
func NewRebuildLeaderboardHandler(
	statsRepo stats.Repository,
	users user.Repository,
	boards leaderboard.Repository,
	cache leaderboard.SnapshotCache,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	cfg RebuildConfig,
) *RebuildLeaderboardHandler {
	def := DefaultRebuildConfig()
	if cfg.MaxEntries <= 0 || cfg.MaxEntries > leaderboard.MaxEntries {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.TopNotify <= 0 {
		cfg.TopNotify = def.TopNotify
	}
	if events == nil {
		events = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RebuildLeaderboardHandler{
		stats:  statsRepo,
		users:  users,
		boards: boards,
		cache:  cache,
		events: events,
		clock:  clock,
		log:    log.With(logger.Component("leaderboard_builder")),
		cfg:    cfg,
	}
}

// Handle rebuilds the board named by cmd.
func (h *RebuildLeaderboardHandler) Handle(ctx context.Context, cmd RebuildLeaderboardCommand) (*leaderboard.Snapshot, error) {
	if err := validateCommand("RebuildLeaderboard", cmd); err != nil {
		return nil, err
	}
	t, err := leaderboard.ParseType(cmd.Type)
	if err != nil {
		return nil, err
	}
	p, err := leaderboard.ParsePeriod(cmd.Period)
	if err != nil {
		return nil, err
	}
	return h.Rebuild(ctx, t, p)
}

// Rebuild recomputes and stores one board.
func (h *RebuildLeaderboardHandler) Rebuild(ctx context.Context, t leaderboard.Type, p leaderboard.Period) (*leaderboard.Snapshot, error) {
	now := h.clock.Now()
	in, err := h.loadPeriod(ctx, p, now)
	if err != nil {
		return nil, err
	}
	return h.store(ctx, leaderboard.Key{Type: t, Period: p}, in, now)
}

// RebuildAll rebuilds every (type, period) board.
func (h *RebuildLeaderboardHandler) RebuildAll(ctx context.Context) ([]*leaderboard.Snapshot, error) {
	return h.RebuildTypes(ctx, leaderboard.AllTypes)
}

// RebuildTypes rebuilds every period of the given types. Stats are read
// once per period and shared by all types.
func (h *RebuildLeaderboardHandler) RebuildTypes(ctx context.Context, types []leaderboard.Type) ([]*leaderboard.Snapshot, error) {
	start := time.Now()
	now := h.clock.Now()

	inputs := make(map[leaderboard.Period]*rankInput, len(leaderboard.AllPeriods))
	var mu sync.Mutex

	load, lctx := errgroup.WithContext(ctx)
	for _, p := range leaderboard.AllPeriods {
		load.Go(func() error {
			in, err := h.loadPeriod(lctx, p, now)
			if err != nil {
				return err
			}
			mu.Lock()
			inputs[p] = in
			mu.Unlock()
			return nil
		})
	}
	if err := load.Wait(); err != nil {
		return nil, err
	}

	var keys []leaderboard.Key
	for _, t := range types {
		for _, p := range leaderboard.AllPeriods {
			keys = append(keys, leaderboard.Key{Type: t, Period: p})
		}
	}

	snapshots := make([]*leaderboard.Snapshot, len(keys))
	save, sctx := errgroup.WithContext(ctx)
	save.SetLimit(h.cfg.Concurrency)
	for i, key := range keys {
		save.Go(func() error {
			snap, err := h.store(sctx, key, inputs[key.Period], now)
			if err != nil {
				return err
			}
			snapshots[i] = snap
			return nil
		})
	}
	if err := save.Wait(); err != nil {
		return nil, err
	}

	h.log.Info("leaderboards rebuilt",
		logger.Int("boards", len(keys)),
		logger.Latency(time.Since(start)),
	)
	return snapshots, nil
}

// rankInput is the stats and user view of one period.
type rankInput struct {
	rows  []*stats.UserStats
	users map[string]*user.User
}

func (h *RebuildLeaderboardHandler) loadPeriod(ctx context.Context, p leaderboard.Period, now time.Time) (*rankInput, error) {
	rows, err := h.stats.ListActiveSince(ctx, p.Since(now))
	if err != nil {
		return nil, fmt.Errorf("rebuild_leaderboard: list %s stats: %w", p, err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	users, err := h.users.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("rebuild_leaderboard: load users: %w", err)
	}
	return &rankInput{rows: rows, users: users}, nil
}

func (h *RebuildLeaderboardHandler) store(ctx context.Context, key leaderboard.Key, in *rankInput, now time.Time) (*leaderboard.Snapshot, error) {
	previous, err := h.boards.Get(ctx, key)
	if err != nil && !shared.IsNotFound(err) {
		h.log.Warn("previous snapshot unavailable", logger.Board(string(key.Type), string(key.Period)), logger.Err(err))
	}

	snap := leaderboard.NewSnapshot(key, leaderboard.Compute(key.Type, in.rows, in.users, h.cfg.MaxEntries), now)
	if err := h.boards.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("rebuild_leaderboard: save %s: %w", key, err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, snap); err != nil {
			board := logger.Board(string(key.Type), string(key.Period))
			h.log.Warn("snapshot cache write failed", board, logger.Err(err))
			// Drop the previous mirror so readers fall back to storage.
			if err := h.cache.Invalidate(ctx, key); err != nil {
				h.log.Warn("snapshot cache invalidate failed", board, logger.Err(err))
			}
		}
	}

	entered := enteredTop(previous, snap, h.cfg.TopNotify)
	if err := h.events.Publish(shared.NewLeaderboardRebuiltEvent(string(key.Type), string(key.Period), len(snap.Rankings), entered)); err != nil {
		h.log.Warn("event publish failed", logger.Err(err))
	}

	h.log.Debug("leaderboard rebuilt",
		logger.Board(string(key.Type), string(key.Period)),
		logger.Int("entries", len(snap.Rankings)),
	)
	return snap, nil
}

// enteredTop returns users ranked within top in next but not in previous.
// A first build reports nobody.
func enteredTop(previous, next *leaderboard.Snapshot, top int) map[string]int {
	if previous == nil || previous.LastUpdated.IsZero() {
		return nil
	}
	var out map[string]int
	for _, e := range next.Rankings {
		if e.Rank > top {
			break
		}
		if old, ok := previous.Find(e.UserID); ok && old.Rank <= top {
			continue
		}
		if out == nil {
			out = make(map[string]int)
		}
		out[e.UserID] = e.Rank
	}
	return out
}
