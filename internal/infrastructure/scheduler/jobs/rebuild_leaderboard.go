// Package jobs contains the scheduled jobs run by the Campus Connect worker.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/internal/infrastructure/scheduler"
	"github.com/campus-connect/campus-core/pkg/logger"
	"github.com/campus-connect/campus-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Periodic full rebuild of every (type, period) board. Monthly and weekly
// boards drift as activity ages out of their window, so event-driven
// rebuilds alone are not enough.
// ══════════════════════════════════════════════════════════════════════════════

// JobNameRebuildLeaderboards is the scheduler name of the job.
const JobNameRebuildLeaderboards = "rebuild-leaderboards"

// Rebuilder rebuilds every board.
type Rebuilder interface {
	RebuildAll(ctx context.Context) ([]*leaderboard.Snapshot, error)
}

// FeatureGate reports whether a feature flag is on.
type FeatureGate interface {
	IsEnabled(name string) bool
}

// Locker grants a lease that keeps concurrent workers from rebuilding at
// the same time.
type Locker interface {
	TryLock(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// RebuildLeaderboardConfig configures the job.
type RebuildLeaderboardConfig struct {
	// Feature is the flag that switches the job; empty means always on.
	Feature string

	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// LockTTL is the lease length; it should exceed a rebuild's duration.
	LockTTL time.Duration
}

// DefaultRebuildLeaderboardConfig returns three attempts with a two-minute
// lease.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		LockTTL:        2 * time.Minute,
	}
}

// RebuildLeaderboardJob implements scheduler.Job.
type RebuildLeaderboardJob struct {
	rebuilder Rebuilder
	flags     FeatureGate
	locker    Locker
	log       *logger.Logger
	cfg       RebuildLeaderboardConfig

	lastStats atomic.Pointer[RebuildStats]
}

// RebuildStats describes the last completed run.
type RebuildStats struct {
	FinishedAt time.Time
	Boards     int
	Entries    int
	Attempts   int
	Duration   time.Duration
}

// NewRebuildLeaderboardJob creates the job. flags and locker may be nil.
func NewRebuildLeaderboardJob(rebuilder Rebuilder, flags FeatureGate, locker Locker, log *logger.Logger, cfg RebuildLeaderboardConfig) *RebuildLeaderboardJob {
	def := DefaultRebuildLeaderboardConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RebuildLeaderboardJob{
		rebuilder: rebuilder,
		flags:     flags,
		locker:    locker,
		log:       log.With(logger.String("job", JobNameRebuildLeaderboards)),
		cfg:       cfg,
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string { return JobNameRebuildLeaderboards }

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds every leaderboard type for all-time, monthly and weekly periods"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if j.cfg.Feature != "" && j.flags != nil && !j.flags.IsEnabled(j.cfg.Feature) {
		return fmt.Errorf("%w: feature %s is off", scheduler.ErrSkipped, j.cfg.Feature)
	}

	if j.locker != nil {
		release, ok, err := j.locker.TryLock(ctx, JobNameRebuildLeaderboards, j.cfg.LockTTL)
		switch {
		case err != nil:
			j.log.Warn("rebuild lock unavailable, running unguarded", logger.Err(err))
		case !ok:
			return fmt.Errorf("%w: another worker holds the lock", scheduler.ErrSkipped)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					j.log.Warn("rebuild lock release failed", logger.Err(err))
				}
			}()
		}
	}

	start := time.Now()
	attempts := 0
	var snapshots []*leaderboard.Snapshot
	err := retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		snapshots, err = j.rebuilder.RebuildAll(ctx)
		if shared.IsValidation(err) {
			return retry.Permanent(err)
		}
		return err
	},
		retry.WithMaxAttempts(j.cfg.MaxAttempts),
		retry.WithDelays(j.cfg.InitialBackoff, j.cfg.MaxBackoff),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			j.log.Warn("rebuild failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("rebuild leaderboards after %d attempts: %w", attempts, err)
	}

	st := &RebuildStats{
		FinishedAt: time.Now(),
		Boards:     len(snapshots),
		Attempts:   attempts,
		Duration:   time.Since(start),
	}
	for _, s := range snapshots {
		st.Entries += len(s.Rankings)
	}
	j.lastStats.Store(st)

	j.log.Info("scheduled rebuild finished",
		logger.Int("boards", st.Boards),
		logger.Int("entries", st.Entries),
		logger.Latency(st.Duration),
	)
	return nil
}

// LastStats returns the last successful run, or nil.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	return j.lastStats.Load()
}
