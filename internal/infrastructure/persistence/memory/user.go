package memory

import (
	"context"
	"sync"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/user"
	"github.com/campus-connect/campus-core/pkg/timeutil"
)

// UserRepo implements user.Repository.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*user.User
	clock timeutil.Clock
}

// NewUserRepo creates an empty repository.
func NewUserRepo(clock timeutil.Clock) *UserRepo {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &UserRepo{users: make(map[string]*user.User), clock: clock}
}

// GetByID implements user.Repository.
func (r *UserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetMany implements user.Repository.
func (r *UserRepo) GetMany(_ context.Context, ids []string) (map[string]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = copyUser(u)
		}
	}
	return out, nil
}

// Upsert implements user.Repository.
func (r *UserRepo) Upsert(_ context.Context, u *user.User) error {
	if u == nil || u.ID == "" {
		return shared.ValidationError("user", "Upsert", "user id is required")
	}
	c := copyUser(u)
	c.CreatedAt = nowOr(r.clock, c.CreatedAt)
	r.mu.Lock()
	r.users[c.ID] = c
	r.mu.Unlock()
	return nil
}

func copyUser(u *user.User) *user.User {
	c := *u
	c.Skills = append([]string(nil), u.Skills...)
	return &c
}
