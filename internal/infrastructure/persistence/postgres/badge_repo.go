package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campus-connect/campus-core/internal/domain/achievement"
	"github.com/campus-connect/campus-core/internal/domain/badge"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// Upsert implements badge.Repository. Existing names are left untouched.
func (r *BadgeRepository) Upsert(ctx context.Context, badges []*badge.Badge) (int, error) {
	inserted := 0
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, b := range badges {
			batch.Queue(`
				INSERT INTO badges (id, name, description, icon, category,
					criteria_type, criteria_target, criteria_metric, rarity, points)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (name) DO NOTHING
			`,
				b.ID,
				b.Name,
				b.Description,
				b.Icon,
				string(b.Category),
				string(b.Criteria.Type),
				b.Criteria.Target,
				string(b.Criteria.Metric),
				string(b.Rarity),
				b.Points,
			)
		}

		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for _, b := range badges {
			tag, err := br.Exec()
			if err != nil {
				return fmt.Errorf("insert badge %q: %w", b.Name, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, storageErr("badge", "Upsert", err)
	}
	return inserted, nil
}

// List implements badge.Repository.
func (r *BadgeRepository) List(ctx context.Context) ([]*badge.Badge, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, description, icon, category,
			criteria_type, criteria_target, criteria_metric, rarity, points
		FROM badges ORDER BY id
	`)
	if err != nil {
		return nil, storageErr("badge", "List", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*badge.Badge, error) {
		var b badge.Badge
		err := row.Scan(
			&b.ID,
			&b.Name,
			&b.Description,
			&b.Icon,
			&b.Category,
			&b.Criteria.Type,
			&b.Criteria.Target,
			&b.Criteria.Metric,
			&b.Rarity,
			&b.Points,
		)
		return &b, err
	})
	if err != nil {
		return nil, storageErr("badge", "List", err)
	}
	return list, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository. Award
// idempotence rests on the (user_id, badge_id) unique constraint.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// InsertIfAbsent implements achievement.Repository.
func (r *AchievementRepository) InsertIfAbsent(ctx context.Context, a *achievement.Achievement) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO achievements (id, user_id, badge_id, earned_at, progress, is_completed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`, a.ID, a.UserID, a.BadgeID, a.EarnedAt, a.Progress, a.IsCompleted)
	if err != nil {
		return false, storageErr("achievement", "InsertIfAbsent", err)
	}
	return tag.RowsAffected() == 1, nil
}

// EarnedBadgeIDs implements achievement.Repository.
func (r *AchievementRepository) EarnedBadgeIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := r.conn.Query(ctx, "SELECT badge_id FROM achievements WHERE user_id = $1", userID)
	if err != nil {
		return nil, storageErr("achievement", "EarnedBadgeIDs", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storageErr("achievement", "EarnedBadgeIDs", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// ListByUser implements achievement.Repository.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.Achievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, badge_id, earned_at, progress, is_completed
		FROM achievements WHERE user_id = $1
		ORDER BY earned_at DESC, badge_id
	`, userID)
	if err != nil {
		return nil, storageErr("achievement", "ListByUser", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*achievement.Achievement, error) {
		var a achievement.Achievement
		err := row.Scan(&a.ID, &a.UserID, &a.BadgeID, &a.EarnedAt, &a.Progress, &a.IsCompleted)
		return &a, err
	})
	if err != nil {
		return nil, storageErr("achievement", "ListByUser", err)
	}
	return list, nil
}
