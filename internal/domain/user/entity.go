// Package user models the parts of a Campus Connect profile that the scoring
// core reads. Profiles are owned by the account service; this package never
// writes them outside of seeding.
package user

import (
	"context"
	"time"
)

// User is the read-only profile view used as a metric source.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"` // student, mentor, admin
	MentorRating float64   `json:"mentorRating"`
	Skills       []string  `json:"skills"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SkillsCount returns the number of listed skills.
func (u *User) SkillsCount() int {
	if u == nil {
		return 0
	}
	return len(u.Skills)
}

// Rating returns the mentor rating, zero for a nil user.
func (u *User) Rating() float64 {
	if u == nil {
		return 0
	}
	return u.MentorRating
}

// Repository reads user profiles.
type Repository interface {
	// GetByID returns shared.ErrUserNotFound when absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetMany returns the users found among ids, keyed by id.
	GetMany(ctx context.Context, ids []string) (map[string]*User, error)

	// Upsert stores a profile. Used by seeding and tests.
	Upsert(ctx context.Context, u *User) error
}
