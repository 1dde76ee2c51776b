package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/circuitbreaker"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT CACHE
// Each board is mirrored as three keys written in one MULTI block:
//
//	leaderboard:snapshot:{type}:{period}  JSON of the whole snapshot
//	leaderboard:rank:{type}:{period}      ZSET member=userID score=rank
//	leaderboard:score:{type}:{period}     ZSET member=userID score=score
//
// Ranks are stored rather than derived from scores because equal scores
// are ordered by user id ascending, which ZREVRANK does not reproduce.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache implements leaderboard.SnapshotCache on Redis. Calls go
// through a circuit breaker so an unreachable Redis fails fast.
type SnapshotCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	breaker *circuitbreaker.Breaker
	log     *logger.Logger
}

// SnapshotCacheConfig configures the mirror.
type SnapshotCacheConfig struct {
	TTL              time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// NewSnapshotCache creates a snapshot mirror over client.
func NewSnapshotCache(client redis.Cmdable, cfg SnapshotCacheConfig, log *logger.Logger) *SnapshotCache {
	if cfg.TTL <= 0 {
		cfg.TTL = TTLSnapshotCache
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("snapshot_cache"))

	settings := circuitbreaker.DefaultSettings("redis-snapshots")
	if cfg.FailureThreshold > 0 {
		settings.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.Cooldown > 0 {
		settings.Cooldown = cfg.Cooldown
	}
	settings.IsFailure = func(err error) bool { return !shared.IsNotFound(err) }
	settings.OnStateChange = func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}

	return &SnapshotCache{
		client:  client,
		ttl:     cfg.TTL,
		breaker: circuitbreaker.New(settings),
		log:     log,
	}
}

func snapshotKey(k leaderboard.Key) string { return PrefixLeaderboard + "snapshot:" + k.String() }
func rankKey(k leaderboard.Key) string     { return PrefixLeaderboard + "rank:" + k.String() }
func scoreKey(k leaderboard.Key) string    { return PrefixLeaderboard + "score:" + k.String() }

// Get implements leaderboard.SnapshotCache. A miss is ErrSnapshotNotFound.
func (c *SnapshotCache) Get(ctx context.Context, key leaderboard.Key) (*leaderboard.Snapshot, error) {
	var snap leaderboard.Snapshot
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		data, err := c.client.Get(ctx, snapshotKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			return leaderboard.ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leaderboard.NewSnapshot(key, snap.Rankings, snap.LastUpdated), nil
}

// Set implements leaderboard.SnapshotCache. The previous mirror of the
// board is replaced atomically.
func (c *SnapshotCache) Set(ctx context.Context, s *leaderboard.Snapshot) error {
	key := s.Key()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	ranks := make([]redis.Z, 0, len(s.Rankings))
	scores := make([]redis.Z, 0, len(s.Rankings))
	for _, e := range s.Rankings {
		ranks = append(ranks, redis.Z{Score: float64(e.Rank), Member: e.UserID})
		scores = append(scores, redis.Z{Score: e.Score, Member: e.UserID})
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rankKey(key), scoreKey(key))
			pipe.Set(ctx, snapshotKey(key), data, c.ttl)
			if len(ranks) > 0 {
				pipe.ZAdd(ctx, rankKey(key), ranks...)
				pipe.ZAdd(ctx, scoreKey(key), scores...)
				pipe.Expire(ctx, rankKey(key), c.ttl)
				pipe.Expire(ctx, scoreKey(key), c.ttl)
			}
			return nil
		})
		return err
	})
}

// Invalidate implements leaderboard.SnapshotCache.
func (c *SnapshotCache) Invalidate(ctx context.Context, key leaderboard.Key) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.client.Del(ctx, snapshotKey(key), rankKey(key), scoreKey(key)).Err()
	})
}

// RankOf looks up one user on a mirrored board. It returns nil when the
// board is mirrored but the user is not ranked, and ErrSnapshotNotFound
// when the board is not mirrored at all.
func (c *SnapshotCache) RankOf(ctx context.Context, key leaderboard.Key, userID string) (*leaderboard.UserRank, error) {
	var out *leaderboard.UserRank
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		pipe := c.client.Pipeline()
		exists := pipe.Exists(ctx, snapshotKey(key))
		rank := pipe.ZScore(ctx, rankKey(key), userID)
		score := pipe.ZScore(ctx, scoreKey(key), userID)
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if exists.Val() == 0 {
			return leaderboard.ErrSnapshotNotFound
		}
		if errors.Is(rank.Err(), redis.Nil) {
			return nil
		}
		if rank.Err() != nil {
			return rank.Err()
		}
		out = &leaderboard.UserRank{Rank: int(rank.Val()), Score: score.Val()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BreakerState reports the circuit state for readiness output.
func (c *SnapshotCache) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
