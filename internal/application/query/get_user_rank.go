package query

import (
	"context"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// GetUserRankQuery asks for one user's position on a board.
type GetUserRankQuery struct {
	UserID string
	Type   string
	Period string
}

// RankIndex answers a single-user lookup without loading the whole board.
// It returns nil for an unranked user and a not-found error when it holds
// no copy of the board.
type RankIndex interface {
	RankOf(ctx context.Context, key leaderboard.Key, userID string) (*leaderboard.UserRank, error)
}

// GetUserRankHandler handles GetUserRankQuery.
type GetUserRankHandler struct {
	reader *SnapshotReader
	index  RankIndex
}

// NewGetUserRankHandler creates the handler. index may be nil.
func NewGetUserRankHandler(reader *SnapshotReader, index RankIndex) *GetUserRankHandler {
	return &GetUserRankHandler{reader: reader, index: index}
}

// Handle returns the rank and score, or nil when the user is not ranked.
func (h *GetUserRankHandler) Handle(ctx context.Context, q GetUserRankQuery) (*leaderboard.UserRank, error) {
	if q.UserID == "" {
		return nil, shared.ValidationError("leaderboard", "GetUserRank", "user id is required")
	}
	key, err := parseKey(q.Type, q.Period)
	if err != nil {
		return nil, err
	}
	if h.index != nil {
		rank, err := h.index.RankOf(ctx, key, q.UserID)
		if err == nil {
			return rank, nil
		}
		if !shared.IsNotFound(err) {
			h.reader.log.Debug("rank index lookup failed", logger.UserID(q.UserID), logger.Err(err))
		}
	}

	snap, err := h.reader.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	e, ok := snap.Find(q.UserID)
	if !ok {
		return nil, nil
	}
	return &leaderboard.UserRank{Rank: e.Rank, Score: e.Score}, nil
}
