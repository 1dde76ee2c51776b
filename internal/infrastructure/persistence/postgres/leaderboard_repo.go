package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository. Each (type,
// period) is one row whose JSONB rankings are replaced on every save.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Save implements leaderboard.Repository.
func (r *LeaderboardRepository) Save(ctx context.Context, s *leaderboard.Snapshot) error {
	rankings := s.Rankings
	if rankings == nil {
		rankings = []leaderboard.Entry{}
	}
	data, err := json.Marshal(rankings)
	if err != nil {
		return storageErr("leaderboard", "Save", fmt.Errorf("marshal rankings: %w", err))
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO leaderboard_snapshots (type, period, rankings, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (type, period) DO UPDATE SET
			rankings = EXCLUDED.rankings,
			last_updated = EXCLUDED.last_updated
	`, string(s.Type), string(s.Period), data, s.LastUpdated)
	return storageErr("leaderboard", "Save", err)
}

// Get implements leaderboard.Repository.
func (r *LeaderboardRepository) Get(ctx context.Context, key leaderboard.Key) (*leaderboard.Snapshot, error) {
	var data []byte
	s := &leaderboard.Snapshot{Type: key.Type, Period: key.Period}
	err := r.conn.QueryRow(ctx, `
		SELECT rankings, last_updated FROM leaderboard_snapshots
		WHERE type = $1 AND period = $2
	`, string(key.Type), string(key.Period)).Scan(&data, &s.LastUpdated)
	if IsNoRows(err) {
		return nil, leaderboard.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, storageErr("leaderboard", "Get", err)
	}

	if err := json.Unmarshal(data, &s.Rankings); err != nil {
		return nil, storageErr("leaderboard", "Get", fmt.Errorf("decode rankings: %w", err))
	}
	return leaderboard.NewSnapshot(key, s.Rankings, s.LastUpdated), nil
}
