// Package eventhandler contains domain event handlers.
package eventhandler

import (
	"context"
	"sync"
	"time"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEADERBOARD REFRESH REQUESTED
// Rebuilds every board after an award. Requests arriving while a rebuild
// runs collapse into one follow-up rebuild.
// ═══════════════════════════════════════════════════════════════════════════

// Rebuilder is the part of the leaderboard builder this handler needs.
type Rebuilder interface {
	RebuildAll(ctx context.Context) ([]*leaderboard.Snapshot, error)
}

// OnRefreshRequestedHandler handles leaderboard.refresh_requested.
type OnRefreshRequestedHandler struct {
	rebuilder Rebuilder
	timeout   time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	running bool
	pending bool
}

// NewOnRefreshRequestedHandler creates the handler.
func NewOnRefreshRequestedHandler(rebuilder Rebuilder, timeout time.Duration, log *logger.Logger) *OnRefreshRequestedHandler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OnRefreshRequestedHandler{
		rebuilder: rebuilder,
		timeout:   timeout,
		log:       log.With(logger.Component("on_refresh_requested")),
	}
}

// Handle implements shared.EventHandler.
func (h *OnRefreshRequestedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventLeaderboardRefreshRequested {
		h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	h.mu.Lock()
	if h.running {
		h.pending = true
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	for {
		err := h.rebuild(event.AggregateID())

		h.mu.Lock()
		if !h.pending {
			h.running = false
			h.mu.Unlock()
			return err
		}
		h.pending = false
		h.mu.Unlock()
	}
}

func (h *OnRefreshRequestedHandler) rebuild(requestedBy string) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	start := time.Now()
	snaps, err := h.rebuilder.RebuildAll(ctx)
	if err != nil {
		h.log.Error("award-triggered rebuild failed", logger.UserID(requestedBy), logger.Err(err))
		return err
	}
	h.log.Debug("award-triggered rebuild done",
		logger.UserID(requestedBy),
		logger.Int("boards", len(snaps)),
		logger.Latency(time.Since(start)),
	)
	return nil
}
