package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/user"
)

// UserRepository implements user.Repository.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = "id, name, role, mentor_rating, skills, created_at"

// GetByID implements user.Repository.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(r.conn.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, storageErr("user", "GetByID", err)
	}
	return u, nil
}

// GetMany implements user.Repository.
func (r *UserRepository) GetMany(ctx context.Context, ids []string) (map[string]*user.User, error) {
	out := make(map[string]*user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.conn.Query(ctx, "SELECT "+userColumns+" FROM users WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, storageErr("user", "GetMany", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*user.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, storageErr("user", "GetMany", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// Upsert implements user.Repository.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		return shared.ValidationError("user", "Upsert", "user id is required")
	}
	role := u.Role
	if role == "" {
		role = "student"
	}
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO users (id, name, role, mentor_rating, skills, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			mentor_rating = EXCLUDED.mentor_rating,
			skills = EXCLUDED.skills
	`, u.ID, u.Name, role, u.MentorRating, skills, createdAt)
	return storageErr("user", "Upsert", err)
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.Role, &u.MentorRating, &u.Skills, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
