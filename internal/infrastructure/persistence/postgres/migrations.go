package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns applied versions with their timestamps.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
// It returns the number applied.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d (%s): %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Rollback reverts the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status returns every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_users_and_stats", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_badges_and_achievements", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_leaderboards_and_notifications", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_mentorship", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USERS AND STATS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'student',
    mentor_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    skills        TEXT[] NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('student', 'mentor', 'admin')),
    CONSTRAINT valid_rating CHECK (mentor_rating >= 0 AND mentor_rating <= 5)
);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id             TEXT PRIMARY KEY,
    projects_created    INTEGER NOT NULL DEFAULT 0,
    projects_completed  INTEGER NOT NULL DEFAULT 0,
    events_attended     INTEGER NOT NULL DEFAULT 0,
    mentorship_sessions INTEGER NOT NULL DEFAULT 0,
    skill_endorsements  INTEGER NOT NULL DEFAULT 0,
    contribution_score  INTEGER NOT NULL DEFAULT 0,
    project_score       INTEGER NOT NULL DEFAULT 0,
    mentorship_score    INTEGER NOT NULL DEFAULT 0,
    teams_joined        INTEGER NOT NULL DEFAULT 0,
    teams_led           INTEGER NOT NULL DEFAULT 0,
    hackathons_won      INTEGER NOT NULL DEFAULT 0,
    competitions_won    INTEGER NOT NULL DEFAULT 0,
    total_points        INTEGER NOT NULL DEFAULT 0,
    level               INTEGER NOT NULL DEFAULT 1,
    current_streak      INTEGER NOT NULL DEFAULT 0,
    longest_streak      INTEGER NOT NULL DEFAULT 0,
    last_activity       TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_points CHECK (total_points >= 0),
    CONSTRAINT valid_level CHECK (level >= 1)
);

CREATE INDEX IF NOT EXISTS idx_user_stats_last_activity ON user_stats(last_activity DESC);

CREATE TABLE IF NOT EXISTS user_monthly_stats (
    user_id     TEXT NOT NULL REFERENCES user_stats(user_id) ON DELETE CASCADE,
    month       CHAR(7) NOT NULL,
    points      INTEGER NOT NULL DEFAULT 0,
    projects    INTEGER NOT NULL DEFAULT 0,
    events      INTEGER NOT NULL DEFAULT 0,
    mentorships INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, month)
);
`

const migration001Down = `
DROP TABLE IF EXISTS user_monthly_stats;
DROP TABLE IF EXISTS user_stats;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BADGES AND ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS badges (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    description     TEXT NOT NULL DEFAULT '',
    icon            TEXT NOT NULL DEFAULT '',
    category        TEXT NOT NULL,
    criteria_type   TEXT NOT NULL,
    criteria_target DOUBLE PRECISION NOT NULL,
    criteria_metric TEXT NOT NULL,
    rarity          TEXT NOT NULL,
    points          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS achievements (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    badge_id     TEXT NOT NULL REFERENCES badges(id),
    earned_at    TIMESTAMPTZ NOT NULL,
    progress     DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_completed BOOLEAN NOT NULL DEFAULT TRUE,

    CONSTRAINT uq_achievements_user_badge UNIQUE (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id, earned_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS badges;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LEADERBOARDS AND NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
    type         TEXT NOT NULL,
    period       TEXT NOT NULL,
    rankings     JSONB NOT NULL DEFAULT '[]'::jsonb,
    last_updated TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (type, period),

    CONSTRAINT valid_type CHECK (type IN ('projects', 'contributions', 'mentorship', 'overall')),
    CONSTRAINT valid_period CHECK (period IN ('all-time', 'monthly', 'weekly'))
);

CREATE TABLE IF NOT EXISTS notifications (
    id         TEXT PRIMARY KEY,
    recipient  TEXT NOT NULL,
    type       TEXT NOT NULL,
    title      TEXT NOT NULL DEFAULT '',
    message    TEXT NOT NULL DEFAULT '',
    metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
    read       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS notifications;
DROP TABLE IF EXISTS leaderboard_snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: MENTORSHIP
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS mentor_availability (
    mentor_id            TEXT PRIMARY KEY,
    weekly_schedule      JSONB NOT NULL DEFAULT '[]'::jsonb,
    exceptions           JSONB NOT NULL DEFAULT '[]'::jsonb,
    timezone             TEXT NOT NULL DEFAULT 'UTC',
    max_sessions_per_day INTEGER NOT NULL DEFAULT 8,
    session_duration     INTEGER NOT NULL DEFAULT 60,
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS mentorship_sessions (
    id                 TEXT PRIMARY KEY,
    mentor_id          TEXT NOT NULL,
    mentee_id          TEXT NOT NULL,
    scheduled_date     TIMESTAMPTZ NOT NULL,
    slot_date          CHAR(10) NOT NULL,
    start_time         CHAR(5) NOT NULL,
    duration           INTEGER NOT NULL,
    status             TEXT NOT NULL,
    topic              TEXT NOT NULL DEFAULT '',
    reschedule_history JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('scheduled', 'confirmed', 'completed', 'cancelled')),
    CONSTRAINT valid_duration CHECK (duration > 0)
);

-- At most one active session per mentor slot.
CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_active_slot
    ON mentorship_sessions(mentor_id, slot_date, start_time)
    WHERE status IN ('scheduled', 'confirmed');

CREATE INDEX IF NOT EXISTS idx_sessions_mentor_date ON mentorship_sessions(mentor_id, slot_date);
`

const migration004Down = `
DROP TABLE IF EXISTS mentorship_sessions;
DROP TABLE IF EXISTS mentor_availability;
`
