package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/campus-connect/campus-core/internal/domain/badge"
)

// BadgeRepo implements badge.Repository.
type BadgeRepo struct {
	mu     sync.RWMutex
	byName map[string]*badge.Badge
}

// NewBadgeRepo creates an empty repository.
func NewBadgeRepo() *BadgeRepo {
	return &BadgeRepo{byName: make(map[string]*badge.Badge)}
}

// Upsert implements badge.Repository. Existing names are left untouched.
func (r *BadgeRepo) Upsert(_ context.Context, badges []*badge.Badge) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, b := range badges {
		if _, ok := r.byName[b.Name]; ok {
			continue
		}
		c := *b
		r.byName[b.Name] = &c
		inserted++
	}
	return inserted, nil
}

// List implements badge.Repository.
func (r *BadgeRepo) List(_ context.Context) ([]*badge.Badge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*badge.Badge, 0, len(r.byName))
	for _, b := range r.byName {
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
