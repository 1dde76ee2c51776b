// Package http exposes the Campus Connect core over a JSON REST API built
// on gin: activity tracking, badges, leaderboards and mentorship booking.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-connect/campus-core/internal/application/command"
	"github.com/campus-connect/campus-core/internal/application/query"
	"github.com/campus-connect/campus-core/internal/interface/http/handlers"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RateLimitRPS is the per-client request rate; zero disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Mode is the gin mode: "release", "debug" or "test".
	Mode string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		Mode:           gin.ReleaseMode,
	}
}

// Address returns the listen address.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains the application handlers behind the routes.
type Dependencies struct {
	// Commands
	TrackActivity     *command.TrackActivityHandler
	RebuildBoards     *command.RebuildLeaderboardHandler
	SetAvailability   *command.SetAvailabilityHandler
	ScheduleSession   *command.ScheduleSessionHandler
	UpdateSession     *command.UpdateSessionStatusHandler
	RescheduleSession *command.RescheduleSessionHandler

	// Queries
	Leaderboard    *query.GetLeaderboardHandler
	UserRank       *query.GetUserRankHandler
	AvailableSlots *query.GetAvailableSlotsHandler
	UserReads      *query.UserReadHandler

	Health *handlers.HealthChecker
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the API server.
type Server struct {
	config     Config
	deps       Dependencies
	engine     *gin.Engine
	httpServer *http.Server
	log        *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer builds the engine and registers every route.
func NewServer(config Config, deps Dependencies) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewHealthChecker("")
	}

	s := &Server{
		config: config,
		deps:   deps,
		engine: gin.New(),
		log:    deps.Logger.With(logger.Component("http")),
	}

	s.engine.Use(
		handlers.RequestID(s.log),
		handlers.AccessLog(s.log, "/health", "/ready"),
		handlers.Recovery(s.log),
	)
	if config.RateLimitRPS > 0 {
		s.engine.Use(handlers.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst).Middleware())
	}
	s.engine.NoRoute(func(c *gin.Context) {
		handlers.AbortWithError(c, http.StatusNotFound, "route_not_found", "no such route")
	})

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              config.Address(),
		Handler:           s.engine,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)

	v1 := s.engine.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Users & badges
	// ─────────────────────────────────────────────────────────────────────────
	v1.POST("/users/:id/activities", s.handleTrackActivity)
	v1.GET("/users/:id/stats", s.handleGetStats)
	v1.GET("/users/:id/achievements", s.handleGetAchievements)
	v1.GET("/users/:id/notifications", s.handleGetNotifications)
	v1.GET("/badges", s.handleListBadges)

	// ─────────────────────────────────────────────────────────────────────────
	// Leaderboards
	// ─────────────────────────────────────────────────────────────────────────
	v1.GET("/leaderboards/:type/:period", s.handleGetLeaderboard)
	v1.GET("/leaderboards/:type/:period/users/:id", s.handleGetUserRank)

	admin := v1.Group("/admin")
	admin.POST("/leaderboards/rebuild", s.handleRebuildAll)
	admin.POST("/leaderboards/:type/:period/rebuild", s.handleRebuild)

	// ─────────────────────────────────────────────────────────────────────────
	// Mentorship
	// ─────────────────────────────────────────────────────────────────────────
	v1.PUT("/mentors/:id/availability", s.handleSetAvailability)
	v1.GET("/mentors/:id/slots", s.handleGetSlots)
	v1.POST("/sessions", s.handleScheduleSession)
	v1.POST("/sessions/:id/status", s.handleUpdateSessionStatus)
	v1.POST("/sessions/:id/reschedule", s.handleRescheduleSession)
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("http: server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http: serve: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine. The channel receives a
// listen error, if any, and is closed when the server returns.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
