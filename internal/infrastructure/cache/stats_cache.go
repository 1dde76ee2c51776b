// Package cache holds in-process read caches that sit in front of
// repositories.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/domain/stats"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// CachedStatsRepository decorates a stats.Repository with a bounded TTL
// cache. Every write through the decorator evicts the user's entry before
// returning, so a read that follows a write never sees the old value.
// Concurrent misses for one user share a single load.
type CachedStatsRepository struct {
	next  stats.Repository
	cache *expirable.LRU[string, *stats.UserStats]
	group singleflight.Group
	log   *logger.Logger

	// epoch advances on every invalidation; a load only fills the cache
	// if no invalidation happened while it ran.
	epoch atomic.Uint64
}

// StatsCacheConfig sizes the cache.
type StatsCacheConfig struct {
	Size int
	TTL  time.Duration
}

// DefaultStatsCacheConfig returns 10000 entries for 5 minutes.
func DefaultStatsCacheConfig() StatsCacheConfig {
	return StatsCacheConfig{Size: 10_000, TTL: 5 * time.Minute}
}

// NewCachedStatsRepository wraps next.
func NewCachedStatsRepository(next stats.Repository, cfg StatsCacheConfig, log *logger.Logger) *CachedStatsRepository {
	def := DefaultStatsCacheConfig()
	if cfg.Size <= 0 {
		cfg.Size = def.Size
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedStatsRepository{
		next:  next,
		cache: expirable.NewLRU[string, *stats.UserStats](cfg.Size, nil, cfg.TTL),
		log:   log.With(logger.Component("stats_cache")),
	}
}

// Get implements stats.Repository. Callers receive a copy.
func (r *CachedStatsRepository) Get(ctx context.Context, userID string) (*stats.UserStats, error) {
	if s, ok := r.cache.Get(userID); ok {
		return s.Clone(), nil
	}

	v, err, _ := r.group.Do(userID, func() (interface{}, error) {
		start := r.epoch.Load()
		s, err := r.next.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if r.epoch.Load() == start {
			r.cache.Add(userID, s.Clone())
		}
		return s, nil
	})
	if err != nil {
		if !shared.IsNotFound(err) {
			r.log.Warn("stats load failed", logger.UserID(userID), logger.Err(err))
		}
		return nil, err
	}
	return v.(*stats.UserStats).Clone(), nil
}

// ApplyActivity implements stats.Repository.
func (r *CachedStatsRepository) ApplyActivity(ctx context.Context, userID string, kind stats.ActivityKind, at time.Time) (*stats.UserStats, error) {
	defer r.Invalidate(userID)
	return r.next.ApplyActivity(ctx, userID, kind, at)
}

// CreditPoints implements stats.Repository.
func (r *CachedStatsRepository) CreditPoints(ctx context.Context, userID string, points int, category stats.Counter, at time.Time) (*stats.UserStats, error) {
	defer r.Invalidate(userID)
	return r.next.CreditPoints(ctx, userID, points, category, at)
}

// ListActiveSince implements stats.Repository. Bulk reads bypass the cache.
func (r *CachedStatsRepository) ListActiveSince(ctx context.Context, since time.Time) ([]*stats.UserStats, error) {
	return r.next.ListActiveSince(ctx, since)
}

// Invalidate drops the cached entry for userID and forgets any in-flight
// load so that the next Get reads storage.
func (r *CachedStatsRepository) Invalidate(userID string) {
	r.epoch.Add(1)
	r.group.Forget(userID)
	r.cache.Remove(userID)
}

// Len returns the number of cached users.
func (r *CachedStatsRepository) Len() int {
	return r.cache.Len()
}
