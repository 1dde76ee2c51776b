package eventhandler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campus-connect/campus-core/config"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/shared"
	"github.com/campus-connect/campus-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RANK CHANGED
// Notifies users who entered the top of a board after a rebuild. Only the
// boards in Boards are announced to keep the volume low.
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedConfig tunes the handler.
type RankChangedConfig struct {
	// Boards lists "type:period" keys to announce.
	Boards []string

	// Cooldown suppresses repeated notifications per (user, board).
	Cooldown time.Duration
}

// DefaultRankChangedConfig returns default configuration.
func DefaultRankChangedConfig() RankChangedConfig {
	return RankChangedConfig{
		Boards:   []string{"overall:all-time", "overall:weekly", "mentorship:all-time"},
		Cooldown: 6 * time.Hour,
	}
}

// OnRankChangedHandler handles leaderboard.rebuilt.
type OnRankChangedHandler struct {
	sink     notification.Sink
	ids      shared.IDGenerator
	features shared.FeatureGate
	log      *logger.Logger
	config   RankChangedConfig
	boards   map[string]bool

	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

// NewOnRankChangedHandler creates the handler.
func NewOnRankChangedHandler(
	sink notification.Sink,
	ids shared.IDGenerator,
	features shared.FeatureGate,
	log *logger.Logger,
	cfg RankChangedConfig,
) *OnRankChangedHandler {
	if features == nil {
		features = shared.AllFeatures{}
	}
	if log == nil {
		log = logger.Nop()
	}
	boards := make(map[string]bool, len(cfg.Boards))
	for _, b := range cfg.Boards {
		boards[b] = true
	}
	return &OnRankChangedHandler{
		sink:     sink,
		ids:      ids,
		features: features,
		log:      log.With(logger.Component("on_rank_changed")),
		config:   cfg,
		boards:   boards,
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Handle implements shared.EventHandler.
func (h *OnRankChangedHandler) Handle(event shared.Event) error {
	boardType, period, entered, ok := rebuiltFields(event)
	if !ok {
		h.log.Warn("received non-LeaderboardRebuiltEvent", logger.String("event_type", string(event.EventType())))
		return nil
	}
	board := boardType + ":" + period
	if !h.boards[board] || len(entered) == 0 {
		return nil
	}

	ctx := context.Background()
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, rank := range entered {
		if !h.features.IsEnabledFor(config.FeatureNotifyLeaderboard, userID) {
			continue
		}
		key := userID + "|" + board
		if last, ok := h.lastSent[key]; ok && now.Sub(last) < h.config.Cooldown {
			continue
		}

		n, err := notification.New(notification.NewParams{
			ID:        h.ids.GenerateID(),
			Recipient: userID,
			Type:      notification.TypeLeaderboard,
			Title:     "You climbed the leaderboard!",
			Message:   fmt.Sprintf("You are now #%d on the %s %s leaderboard", rank, period, boardType),
			Metadata:  map[string]any{"type": boardType, "period": period, "rank": rank},
			CreatedAt: now.UTC(),
		})
		if err == nil {
			err = h.sink.Notify(ctx, n)
		}
		if err != nil {
			h.log.Warn("rank notification failed", logger.UserID(userID), logger.Err(err))
			continue
		}
		h.lastSent[key] = now
	}
	return nil
}

// rebuiltFields reads a rebuilt event whether it arrived typed or decoded
// from a remote envelope.
func rebuiltFields(event shared.Event) (boardType, period string, entered map[string]int, ok bool) {
	switch e := event.(type) {
	case shared.LeaderboardRebuiltEvent:
		return e.BoardType, e.Period, e.EnteredTop, true
	case *shared.LeaderboardRebuiltEvent:
		return e.BoardType, e.Period, e.EnteredTop, true
	}
	if event.EventType() != shared.EventLeaderboardRebuilt {
		return "", "", nil, false
	}
	p := event.Payload()
	boardType, _ = p["board_type"].(string)
	period, _ = p["period"].(string)
	if raw, isMap := p["entered_top"].(map[string]interface{}); isMap {
		entered = make(map[string]int, len(raw))
		for id, v := range raw {
			switch n := v.(type) {
			case float64:
				entered[id] = int(n)
			case int:
				entered[id] = n
			}
		}
	}
	return boardType, period, entered, boardType != ""
}
