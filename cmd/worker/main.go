// Package main is the entry point of the Campus Connect background worker.
//
// The worker runs periodic jobs against the shared storage:
//   - full rebuild of every leaderboard (type x period), which keeps the
//     monthly and weekly boards correct as activity ages out of their window
//
// Several workers may run at once; with Redis connected the rebuild job takes
// a lease so only one of them rebuilds per tick.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/app"
	"github.com/campus-connect/campus-core/internal/infrastructure/scheduler"
	"github.com/campus-connect/campus-core/internal/infrastructure/scheduler/jobs"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		AddCaller: true,
	}).With(logger.Component("worker"))
	defer func() { _ = log.Sync() }()

	log.Info("starting Campus Connect worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("storage", cfg.App.StorageDriver),
		logger.Bool("scheduler", cfg.Scheduler.Enabled),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE AND CACHE
	// Scheduled rebuilds do not publish events; rank-change notifications
	// come from the award-driven rebuilds in the API process.
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := app.Open(ctx, cfg, log, app.OpenOptions{})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("releasing resources")
		rt.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		JobTimeout: cfg.Scheduler.JobTimeout,
	})

	if cfg.Scheduler.Enabled {
		var locker jobs.Locker
		if rt.Redis != nil {
			locker = rt.Redis
		}
		jobCfg := jobs.DefaultRebuildLeaderboardConfig()
		jobCfg.Feature = config.FeatureScheduledRebuild
		if cfg.Scheduler.JobTimeout > jobCfg.LockTTL {
			jobCfg.LockTTL = cfg.Scheduler.JobTimeout
		}

		job := jobs.NewRebuildLeaderboardJob(rt.Core.Rebuild, cfg.Features, locker, log, jobCfg)
		if err := sched.Register(job, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}

		// The first scheduled run is one interval away.
		if _, err := sched.RunNow(ctx, job.Name()); err != nil {
			log.Warn("initial rebuild failed", logger.Err(err))
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		log.Info("scheduler started",
			logger.Duration("leaderboard_interval", cfg.Scheduler.RebuildLeaderboardInterval),
		)
	} else {
		log.Warn("scheduler disabled; worker will idle")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	if !sched.IsRunning() {
		log.Info("shutdown completed")
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- sched.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("scheduler stop", logger.Err(err))
		}
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("scheduler did not stop in time")
	}
	sched.LogStatus()

	log.Info("shutdown completed")
	return nil
}
