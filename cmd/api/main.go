// Package main is the entry point of the Campus Connect API server.
//
// The server exposes activity tracking, badges, leaderboards and mentorship
// booking over HTTP. Award-driven leaderboard refreshes and rank-change
// notifications run on the event dispatcher inside the same process.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/app"
	"github.com/campus-connect/campus-core/internal/infrastructure/messaging"
	httpserver "github.com/campus-connect/campus-core/internal/interface/http"
	"github.com/campus-connect/campus-core/internal/interface/http/handlers"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	}).With(logger.Component("api"))
	defer func() { _ = log.Sync() }()

	log.Info("starting Campus Connect API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.App.StorageDriver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE, CACHE AND EVENTS
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := app.Open(ctx, cfg, log, app.OpenOptions{Events: true})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("releasing resources")
		rt.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewHealthChecker(cfg.App.Version)
	if rt.DB != nil {
		health.AddCheck("database", handlers.PingCheck(rt.DB), true)
	}
	if rt.Redis != nil {
		health.AddCheck("redis", handlers.PingCheck(rt.Redis), false)
	}
	if rt.Dispatcher != nil {
		health.AddCheck("events", rt.Dispatcher.CheckDeadLetters(messaging.DefaultDeadLetterWindow), false)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.RateLimitRPS = 0
	if cfg.HTTP.EnableRateLimit {
		srvCfg.RateLimitRPS = cfg.HTTP.RateLimitRPS
		srvCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst
	}
	if cfg.IsDevelopment() {
		srvCfg.Mode = gin.DebugMode
	}

	core := rt.Core
	srv := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		TrackActivity:     core.Track,
		RebuildBoards:     core.Rebuild,
		SetAvailability:   core.SetAvailability,
		ScheduleSession:   core.ScheduleSession,
		UpdateSession:     core.UpdateSession,
		RescheduleSession: core.RescheduleSession,
		Leaderboard:       core.Leaderboard,
		UserRank:          core.UserRank,
		AvailableSlots:    core.AvailableSlots,
		UserReads:         core.UserReads,
		Health:            health,
		Logger:            log,
	})
	errCh := srv.StartAsync()

	log.Info("Campus Connect API is running", logger.String("address", srvCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("http server stopped", logger.Err(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("http shutdown failed", logger.Err(err))
		return errors.Join(serveErr, err)
	}

	log.Info("shutdown completed")
	return serveErr
}
