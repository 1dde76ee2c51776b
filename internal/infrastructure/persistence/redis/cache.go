// Package redis holds the Redis-backed parts of Campus Connect: the client
// wrapper, the leaderboard snapshot mirror and a distributed lock used to
// keep scheduled rebuilds single-flight across workers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string

	// DB is the Redis database number (0-15).
	DB int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration
}

// DefaultConfig returns a local single-node configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Options converts c to go-redis options.
func (c Config) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolTimeout:  c.PoolTimeout,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrCacheSerialization is returned when a snapshot cannot be encoded or decoded.
var ErrCacheSerialization = errors.New("cache: serialization failed")

// ══════════════════════════════════════════════════════════════════════════════
// KEYS AND TTLs
// ══════════════════════════════════════════════════════════════════════════════

const (
	PrefixLeaderboard = "leaderboard:"
	PrefixLock        = "lock:"
)

const (
	// TTLSnapshotCache is the default lifetime of a mirrored snapshot.
	TTLSnapshotCache = 10 * time.Minute

	// TTLDistributedLock is the default lock lease.
	TTLDistributedLock = 2 * time.Minute
)

// LockKey returns the key guarding resource.
func LockKey(resource string) string {
	return PrefixLock + resource
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a thin JSON layer over a go-redis client.
type Cache struct {
	client *redis.Client
	config Config
	log    *logger.Logger
}

// NewCache connects and pings once.
func NewCache(ctx context.Context, cfg Config, log *logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.Nop()
	}
	client := redis.NewClient(cfg.Options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr(), err)
	}

	log.Info("redis connected", logger.String("addr", cfg.Addr()), logger.Int("db", cfg.DB))
	return &Cache{client: client, config: cfg, log: log.With(logger.Component("redis"))}, nil
}

// Client returns the underlying go-redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// DISTRIBUTED LOCK
// ─────────────────────────────────────────────────────────────────────────────

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock takes a lease on resource with SET NX. ok is false when another
// owner holds it. The returned release function is safe to call after the
// lease has expired.
func (c *Cache) TryLock(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	key := LockKey(resource)
	token := uuid.NewString()

	ok, err = c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis: lock %s: %w", resource, err)
	}
	if !ok {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		return releaseScript.Run(ctx, c.client, []string{key}, token).Err()
	}
	return release, true, nil
}
