package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements stats.Repository. Counters are changed with
// "col = col + n" and the streak is recomputed under SELECT ... FOR UPDATE.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

// Column names are interpolated into SQL; only these are accepted.
var counterColumns = map[stats.Counter]bool{
	stats.CounterProjectsCreated:    true,
	stats.CounterProjectsCompleted:  true,
	stats.CounterEventsAttended:     true,
	stats.CounterMentorshipSessions: true,
	stats.CounterSkillEndorsements:  true,
	stats.CounterContributionScore:  true,
	stats.CounterProjectScore:       true,
	stats.CounterMentorshipScore:    true,
	stats.CounterTeamsJoined:        true,
	stats.CounterTeamsLed:           true,
	stats.CounterHackathonsWon:      true,
	stats.CounterCompetitionsWon:    true,
}

var monthlyColumns = map[stats.MonthlyField]bool{
	stats.MonthlyProjects:    true,
	stats.MonthlyEvents:      true,
	stats.MonthlyMentorships: true,
}

const statsColumns = `user_id, projects_created, projects_completed, events_attended,
	mentorship_sessions, skill_endorsements, contribution_score, project_score,
	mentorship_score, teams_joined, teams_led, hackathons_won, competitions_won,
	total_points, level, current_streak, longest_streak, last_activity,
	created_at, updated_at`

// Get implements stats.Repository.
func (r *StatsRepository) Get(ctx context.Context, userID string) (*stats.UserStats, error) {
	s, err := loadStats(ctx, r.conn, userID)
	if err != nil {
		return nil, storageErr("stats", "Get", err)
	}
	return s, nil
}

// ApplyActivity implements stats.Repository.
func (r *StatsRepository) ApplyActivity(ctx context.Context, userID string, kind stats.ActivityKind, at time.Time) (*stats.UserStats, error) {
	effect, ok := stats.EffectOf(kind)
	if !ok {
		return nil, shared.ValidationError("stats", "ApplyActivity", "unknown activity kind %q", kind)
	}

	var result *stats.UserStats
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := ensureStatsRow(ctx, tx, userID, at); err != nil {
			return err
		}

		var streak stats.Streaks
		var last *time.Time
		err := tx.QueryRow(ctx, `
			SELECT current_streak, longest_streak, last_activity
			FROM user_stats WHERE user_id = $1 FOR UPDATE
		`, userID).Scan(&streak.Current, &streak.Longest, &last)
		if err != nil {
			return fmt.Errorf("lock stats row: %w", err)
		}
		if last != nil {
			streak.LastActivity = *last
		}
		streak = stats.NextStreak(streak, at)

		sets := make([]string, 0, len(effect.Counters)+5)
		for _, c := range effect.Counters {
			if !counterColumns[c] {
				return fmt.Errorf("unknown counter column %q", c)
			}
			sets = append(sets, fmt.Sprintf("%[1]s = %[1]s + 1", c))
		}
		sets = append(sets,
			"current_streak = $2",
			"longest_streak = $3",
			"last_activity = $4",
			"level = total_points / 100 + 1",
			"updated_at = $5",
		)
		_, err = tx.Exec(ctx,
			"UPDATE user_stats SET "+strings.Join(sets, ", ")+" WHERE user_id = $1",
			userID, streak.Current, streak.Longest, streak.LastActivity, at,
		)
		if err != nil {
			return fmt.Errorf("increment counters: %w", err)
		}

		if err := bumpMonth(ctx, tx, userID, timeutil.MonthKey(at), effect.Monthly, 1); err != nil {
			return err
		}

		result, err = loadStats(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, storageErr("stats", "ApplyActivity", err)
	}
	return result, nil
}

// CreditPoints implements stats.Repository.
func (r *StatsRepository) CreditPoints(ctx context.Context, userID string, points int, category stats.Counter, at time.Time) (*stats.UserStats, error) {
	if category != "" && !counterColumns[category] {
		return nil, shared.ValidationError("stats", "CreditPoints", "unknown counter %q", category)
	}

	var result *stats.UserStats
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := ensureStatsRow(ctx, tx, userID, at); err != nil {
			return err
		}

		sets := []string{
			"total_points = total_points + $2",
			"level = (total_points + $2) / 100 + 1",
			"updated_at = $3",
		}
		if category != "" {
			sets = append(sets, fmt.Sprintf("%[1]s = %[1]s + $2", category))
		}
		_, err := tx.Exec(ctx,
			"UPDATE user_stats SET "+strings.Join(sets, ", ")+" WHERE user_id = $1",
			userID, points, at,
		)
		if err != nil {
			return fmt.Errorf("credit points: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_monthly_stats (user_id, month, points) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, month) DO UPDATE SET points = user_monthly_stats.points + EXCLUDED.points
		`, userID, timeutil.MonthKey(at), points)
		if err != nil {
			return fmt.Errorf("credit month: %w", err)
		}

		result, err = loadStats(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, storageErr("stats", "CreditPoints", err)
	}
	return result, nil
}

// ListActiveSince implements stats.Repository.
func (r *StatsRepository) ListActiveSince(ctx context.Context, since time.Time) ([]*stats.UserStats, error) {
	var sinceArg any
	if !since.IsZero() {
		sinceArg = since
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+statsColumns+`
		FROM user_stats
		WHERE $1::timestamptz IS NULL OR last_activity >= $1
		ORDER BY user_id
	`, sinceArg)
	if err != nil {
		return nil, storageErr("stats", "ListActiveSince", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*stats.UserStats, error) {
		return scanStats(row)
	})
	if err != nil {
		return nil, storageErr("stats", "ListActiveSince", err)
	}
	if len(list) == 0 {
		return list, nil
	}

	byUser := make(map[string]*stats.UserStats, len(list))
	ids := make([]string, len(list))
	for i, s := range list {
		byUser[s.UserID] = s
		ids[i] = s.UserID
	}
	months, err := r.conn.Query(ctx, `
		SELECT user_id, month, points, projects, events, mentorships
		FROM user_monthly_stats
		WHERE user_id = ANY($1)
		ORDER BY user_id, month
	`, ids)
	if err != nil {
		return nil, storageErr("stats", "ListActiveSince", err)
	}
	defer months.Close()
	for months.Next() {
		var userID string
		var m stats.MonthlyStat
		if err := months.Scan(&userID, &m.Month, &m.Points, &m.Projects, &m.Events, &m.Mentorships); err != nil {
			return nil, storageErr("stats", "ListActiveSince", err)
		}
		if s := byUser[userID]; s != nil {
			s.MonthlyStats = append(s.MonthlyStats, m)
		}
	}
	if err := months.Err(); err != nil {
		return nil, storageErr("stats", "ListActiveSince", err)
	}
	return list, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func ensureStatsRow(ctx context.Context, q Querier, userID string, at time.Time) error {
	_, err := q.Exec(ctx, `
		INSERT INTO user_stats (user_id, created_at, updated_at) VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, at)
	if err != nil {
		return fmt.Errorf("create stats row: %w", err)
	}
	return nil
}

// bumpMonth upserts the month bucket, incrementing field by n. An empty
// field only creates the bucket.
func bumpMonth(ctx context.Context, q Querier, userID, month string, field stats.MonthlyField, n int) error {
	var err error
	if field == stats.MonthlyNone {
		_, err = q.Exec(ctx, `
			INSERT INTO user_monthly_stats (user_id, month) VALUES ($1, $2)
			ON CONFLICT (user_id, month) DO NOTHING
		`, userID, month)
	} else {
		if !monthlyColumns[field] {
			return fmt.Errorf("unknown monthly column %q", field)
		}
		_, err = q.Exec(ctx, fmt.Sprintf(`
			INSERT INTO user_monthly_stats (user_id, month, %[1]s) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, month) DO UPDATE SET %[1]s = user_monthly_stats.%[1]s + EXCLUDED.%[1]s
		`, field), userID, month, n)
	}
	if err != nil {
		return fmt.Errorf("upsert month bucket: %w", err)
	}
	return nil
}

func loadStats(ctx context.Context, q Querier, userID string) (*stats.UserStats, error) {
	s, err := scanStats(q.QueryRow(ctx, "SELECT "+statsColumns+" FROM user_stats WHERE user_id = $1", userID))
	if IsNoRows(err) {
		return nil, stats.ErrStatsNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT month, points, projects, events, mentorships
		FROM user_monthly_stats WHERE user_id = $1 ORDER BY month
	`, userID)
	if err != nil {
		return nil, err
	}
	s.MonthlyStats, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (stats.MonthlyStat, error) {
		var m stats.MonthlyStat
		err := row.Scan(&m.Month, &m.Points, &m.Projects, &m.Events, &m.Mentorships)
		return m, err
	})
	return s, err
}

func scanStats(row pgx.Row) (*stats.UserStats, error) {
	var s stats.UserStats
	var last *time.Time
	err := row.Scan(
		&s.UserID,
		&s.ProjectsCreated,
		&s.ProjectsCompleted,
		&s.EventsAttended,
		&s.MentorshipSessions,
		&s.SkillEndorsements,
		&s.ContributionScore,
		&s.ProjectScore,
		&s.MentorshipScore,
		&s.TeamsJoined,
		&s.TeamsLed,
		&s.HackathonsWon,
		&s.CompetitionsWon,
		&s.TotalPoints,
		&s.Level,
		&s.Streaks.Current,
		&s.Streaks.Longest,
		&last,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if last != nil {
		s.Streaks.LastActivity = *last
	}
	return &s, nil
}
