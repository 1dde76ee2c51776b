package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-connect/campus-core/internal/domain/mentorship"
	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MENTORSHIP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MentorshipRepository implements mentorship.Repository. Double booking is
// rejected by the uq_sessions_active_slot partial unique index; the daily
// limit is re-checked under a per-day advisory lock.
type MentorshipRepository struct {
	conn *Connection
}

// NewMentorshipRepository creates a new MentorshipRepository.
func NewMentorshipRepository(conn *Connection) *MentorshipRepository {
	return &MentorshipRepository{conn: conn}
}

const activeSlotIndex = "uq_sessions_active_slot"

// ─────────────────────────────────────────────────────────────────────────────
// AVAILABILITY
// ─────────────────────────────────────────────────────────────────────────────

// GetAvailability implements mentorship.Repository.
func (r *MentorshipRepository) GetAvailability(ctx context.Context, mentorID string) (*mentorship.Availability, error) {
	a := &mentorship.Availability{MentorID: mentorID}
	var weekly, exceptions []byte
	err := r.conn.QueryRow(ctx, `
		SELECT weekly_schedule, exceptions, timezone, max_sessions_per_day, session_duration, updated_at
		FROM mentor_availability WHERE mentor_id = $1
	`, mentorID).Scan(&weekly, &exceptions, &a.Timezone, &a.MaxSessionsPerDay, &a.SessionDuration, &a.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrMentorNotFound
	}
	if err != nil {
		return nil, storageErr("mentorship", "GetAvailability", err)
	}

	if err := json.Unmarshal(weekly, &a.WeeklySchedule); err != nil {
		return nil, storageErr("mentorship", "GetAvailability", fmt.Errorf("decode weekly schedule: %w", err))
	}
	if err := json.Unmarshal(exceptions, &a.Exceptions); err != nil {
		return nil, storageErr("mentorship", "GetAvailability", fmt.Errorf("decode exceptions: %w", err))
	}
	return a, nil
}

// SaveAvailability implements mentorship.Repository.
func (r *MentorshipRepository) SaveAvailability(ctx context.Context, a *mentorship.Availability) error {
	weekly, err := json.Marshal(nonNil(a.WeeklySchedule))
	if err != nil {
		return storageErr("mentorship", "SaveAvailability", err)
	}
	exceptions, err := json.Marshal(nonNil(a.Exceptions))
	if err != nil {
		return storageErr("mentorship", "SaveAvailability", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO mentor_availability
			(mentor_id, weekly_schedule, exceptions, timezone, max_sessions_per_day, session_duration, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (mentor_id) DO UPDATE SET
			weekly_schedule = EXCLUDED.weekly_schedule,
			exceptions = EXCLUDED.exceptions,
			timezone = EXCLUDED.timezone,
			max_sessions_per_day = EXCLUDED.max_sessions_per_day,
			session_duration = EXCLUDED.session_duration,
			updated_at = EXCLUDED.updated_at
	`, a.MentorID, weekly, exceptions, a.Timezone, a.MaxSessionsPerDay, a.SessionDuration, a.UpdatedAt)
	return storageErr("mentorship", "SaveAvailability", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// SESSIONS
// ─────────────────────────────────────────────────────────────────────────────

const sessionColumns = `id, mentor_id, mentee_id, scheduled_date, slot_date, start_time,
	duration, status, topic, reschedule_history, created_at, updated_at`

// InsertSession implements mentorship.Repository.
func (r *MentorshipRepository) InsertSession(ctx context.Context, s *mentorship.Session, guard mentorship.WriteGuard) error {
	history, err := json.Marshal(nonNil(s.RescheduleHistory))
	if err != nil {
		return storageErr("mentorship", "InsertSession", err)
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if err := checkDailyLimit(ctx, tx, s, guard.MaxPerDay); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO mentorship_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			s.ID,
			s.MentorID,
			s.MenteeID,
			s.ScheduledDate,
			s.SlotDate,
			s.StartTime,
			s.Duration,
			string(s.Status),
			s.Topic,
			history,
			s.CreatedAt,
			s.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return sessionWriteErr("InsertSession", err)
	}
	return nil
}

// UpdateSession implements mentorship.Repository. The stored row is locked
// so the expected status, slot and daily limit hold until commit.
func (r *MentorshipRepository) UpdateSession(ctx context.Context, s *mentorship.Session, guard mentorship.WriteGuard) error {
	history, err := json.Marshal(nonNil(s.RescheduleHistory))
	if err != nil {
		return storageErr("mentorship", "UpdateSession", err)
	}

	err = r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var (
			stored     string
			storedSlot time.Time
		)
		err := tx.QueryRow(ctx, `SELECT status, scheduled_date FROM mentorship_sessions WHERE id = $1 FOR UPDATE`, s.ID).
			Scan(&stored, &storedSlot)
		if IsNoRows(err) {
			return mentorship.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if guard.ExpectedStatus != "" && mentorship.Status(stored) != guard.ExpectedStatus {
			return shared.WrapError("mentorship", "UpdateSession", shared.ErrConflict,
				fmt.Sprintf("session is %s, expected %s", stored, guard.ExpectedStatus), mentorship.ErrInvalidTransition)
		}
		if !guard.ExpectedSlot.IsZero() && !storedSlot.Equal(guard.ExpectedSlot) {
			return mentorship.ErrSessionMoved
		}
		if err := checkDailyLimit(ctx, tx, s, guard.MaxPerDay); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE mentorship_sessions SET
				scheduled_date = $2,
				slot_date = $3,
				start_time = $4,
				duration = $5,
				status = $6,
				topic = $7,
				reschedule_history = $8,
				updated_at = $9
			WHERE id = $1
		`, s.ID, s.ScheduledDate, s.SlotDate, s.StartTime, s.Duration, string(s.Status), s.Topic, history, s.UpdatedAt)
		return err
	})
	if err != nil {
		return sessionWriteErr("UpdateSession", err)
	}
	return nil
}

// checkDailyLimit serializes writers of one mentor day with an advisory
// lock and counts the other active sessions of that day.
func checkDailyLimit(ctx context.Context, tx pgx.Tx, s *mentorship.Session, maxPerDay int) error {
	if maxPerDay <= 0 || !s.Status.IsActive() {
		return nil
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.MentorID+"|"+s.SlotDate); err != nil {
		return fmt.Errorf("lock mentor day: %w", err)
	}
	var count int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM mentorship_sessions
		WHERE mentor_id = $1 AND slot_date = $2 AND id <> $3 AND status IN ('scheduled', 'confirmed')
	`, s.MentorID, s.SlotDate, s.ID).Scan(&count)
	if err != nil {
		return fmt.Errorf("count mentor day: %w", err)
	}
	if count >= maxPerDay {
		return mentorship.ErrDailyLimitReached
	}
	return nil
}

// GetSession implements mentorship.Repository.
func (r *MentorshipRepository) GetSession(ctx context.Context, id string) (*mentorship.Session, error) {
	s, err := scanSession(r.conn.QueryRow(ctx, "SELECT "+sessionColumns+" FROM mentorship_sessions WHERE id = $1", id))
	if IsNoRows(err) {
		return nil, mentorship.ErrSessionNotFound
	}
	if err != nil {
		return nil, storageErr("mentorship", "GetSession", err)
	}
	return s, nil
}

// ListActiveSessions implements mentorship.Repository.
func (r *MentorshipRepository) ListActiveSessions(ctx context.Context, mentorID, date string) ([]*mentorship.Session, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM mentorship_sessions
		WHERE mentor_id = $1 AND slot_date = $2 AND status IN ('scheduled', 'confirmed')
		ORDER BY start_time, id
	`, mentorID, date)
	if err != nil {
		return nil, storageErr("mentorship", "ListActiveSessions", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*mentorship.Session, error) {
		return scanSession(row)
	})
	if err != nil {
		return nil, storageErr("mentorship", "ListActiveSessions", err)
	}
	return list, nil
}

// sessionWriteErr maps a violation of the active-slot index to
// ErrSlotAlreadyBooked and a duplicate id to a conflict.
func sessionWriteErr(op string, err error) error {
	if IsUniqueViolation(err) {
		if constraintName(err) == activeSlotIndex {
			return mentorship.ErrSlotAlreadyBooked
		}
		return shared.WrapError("mentorship", op, shared.ErrConflict, "session already exists", err)
	}
	return storageErr("mentorship", op, err)
}

func scanSession(row pgx.Row) (*mentorship.Session, error) {
	var s mentorship.Session
	var history []byte
	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.MenteeID,
		&s.ScheduledDate,
		&s.SlotDate,
		&s.StartTime,
		&s.Duration,
		&s.Status,
		&s.Topic,
		&history,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.RescheduleHistory); err != nil {
			return nil, fmt.Errorf("decode reschedule history: %w", err)
		}
	}
	return &s, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
