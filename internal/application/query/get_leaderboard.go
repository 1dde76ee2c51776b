// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Reads the stored snapshot. Reads never trigger a rebuild: a board that
// was never built is returned empty with a zero lastUpdated.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery selects a board and how many rows to return.
type GetLeaderboardQuery struct {
	Type   string
	Period string

	// Limit defaults when zero and is clamped to [1, 100].
	Limit int
}

// LeaderboardView is the wire shape of a board.
type LeaderboardView struct {
	Type        leaderboard.Type    `json:"type"`
	Period      leaderboard.Period  `json:"period"`
	LastUpdated time.Time           `json:"lastUpdated"`
	Rankings    []leaderboard.Entry `json:"rankings"`
}

// SnapshotReader loads snapshots through the cache, falling back to the
// repository.
type SnapshotReader struct {
	boards leaderboard.Repository
	cache  leaderboard.SnapshotCache
	log    *logger.Logger
}

// NewSnapshotReader creates a reader. cache may be nil.
func NewSnapshotReader(boards leaderboard.Repository, cache leaderboard.SnapshotCache, log *logger.Logger) *SnapshotReader {
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotReader{boards: boards, cache: cache, log: log.With(logger.Component("snapshot_reader"))}
}

// Load returns the snapshot for key or an empty one.
func (r *SnapshotReader) Load(ctx context.Context, key leaderboard.Key) (*leaderboard.Snapshot, error) {
	if r.cache != nil {
		snap, err := r.cache.Get(ctx, key)
		if err == nil {
			return snap, nil
		}
		if !shared.IsNotFound(err) {
			r.log.Warn("snapshot cache read failed", logger.Board(string(key.Type), string(key.Period)), logger.Err(err))
		}
	}

	snap, err := r.boards.Get(ctx, key)
	if shared.IsNotFound(err) {
		return leaderboard.Empty(key), nil
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, snap); err != nil {
			r.log.Debug("snapshot cache fill failed", logger.Err(err))
		}
	}
	return snap, nil
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	reader       *SnapshotReader
	defaultLimit int
}

// NewGetLeaderboardHandler creates the handler.
func NewGetLeaderboardHandler(reader *SnapshotReader, defaultLimit int) *GetLeaderboardHandler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &GetLeaderboardHandler{reader: reader, defaultLimit: defaultLimit}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardView, error) {
	key, err := parseKey(q.Type, q.Period)
	if err != nil {
		return nil, err
	}
	if q.Limit < 0 {
		return nil, shared.ValidationError("leaderboard", "Get", "limit cannot be negative")
	}

	snap, err := h.reader.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return &LeaderboardView{
		Type:        key.Type,
		Period:      key.Period,
		LastUpdated: snap.LastUpdated,
		Rankings:    snap.Top(leaderboard.ClampLimit(q.Limit, h.defaultLimit)),
	}, nil
}

func parseKey(typ, period string) (leaderboard.Key, error) {
	t, err := leaderboard.ParseType(typ)
	if err != nil {
		return leaderboard.Key{}, err
	}
	p, err := leaderboard.ParsePeriod(period)
	if err != nil {
		return leaderboard.Key{}, err
	}
	return leaderboard.Key{Type: t, Period: p}, nil
}
