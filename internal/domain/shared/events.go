package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Stats events
	EventActivityTracked EventType = "stats.activity_tracked"
	EventLevelUp         EventType = "stats.level_up"

	// Badge events
	EventBadgeAwarded EventType = "badge.awarded"

	// Leaderboard events
	EventLeaderboardRefreshRequested EventType = "leaderboard.refresh_requested"
	EventLeaderboardRebuilt          EventType = "leaderboard.rebuilt"

	// Mentorship events
	EventSessionScheduled     EventType = "mentorship.session_scheduled"
	EventSessionStatusChanged EventType = "mentorship.session_status_changed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// Correlation returns the correlation ID, empty when unset.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// ═══════════════════════════════════════════════════════════════════════════
// Stats & Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityTrackedEvent is emitted after a user's stats were updated.
type ActivityTrackedEvent struct {
	BaseEvent
	Kind          string `json:"kind"`
	CurrentStreak int    `json:"current_streak"`
	Level         int    `json:"level"`
}

// Payload implements Event interface.
func (e ActivityTrackedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":           e.Kind,
		"current_streak": e.CurrentStreak,
		"level":          e.Level,
	}
}

// NewActivityTrackedEvent creates a new ActivityTrackedEvent.
func NewActivityTrackedEvent(userID, kind string, streak, level int) ActivityTrackedEvent {
	return ActivityTrackedEvent{
		BaseEvent:     NewBaseEvent(EventActivityTracked, userID),
		Kind:          kind,
		CurrentStreak: streak,
		Level:         level,
	}
}

// BadgeAwardedEvent is emitted once per newly earned badge.
type BadgeAwardedEvent struct {
	BaseEvent
	BadgeID   string `json:"badge_id"`
	BadgeName string `json:"badge_name"`
	Category  string `json:"category"`
	Points    int    `json:"points"`
}

// Payload implements Event interface.
func (e BadgeAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"badge_id":   e.BadgeID,
		"badge_name": e.BadgeName,
		"category":   e.Category,
		"points":     e.Points,
	}
}

// NewBadgeAwardedEvent creates a new BadgeAwardedEvent.
func NewBadgeAwardedEvent(userID, badgeID, badgeName, category string, points int) BadgeAwardedEvent {
	return BadgeAwardedEvent{
		BaseEvent: NewBaseEvent(EventBadgeAwarded, userID),
		BadgeID:   badgeID,
		BadgeName: badgeName,
		Category:  category,
		Points:    points,
	}
}

// LevelUpEvent is emitted when an award pushes the user to a new level.
type LevelUpEvent struct {
	BaseEvent
	OldLevel int `json:"old_level"`
	NewLevel int `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardRefreshRequestedEvent asks the builder to recompute boards.
// Empty Types means every board type.
type LeaderboardRefreshRequestedEvent struct {
	BaseEvent
	Types  []string `json:"types,omitempty"`
	Reason string   `json:"reason"`
}

// Payload implements Event interface.
func (e LeaderboardRefreshRequestedEvent) Payload() map[string]interface{} {
	types := make([]interface{}, len(e.Types))
	for i, t := range e.Types {
		types[i] = t
	}
	return map[string]interface{}{
		"types":  types,
		"reason": e.Reason,
	}
}

// NewLeaderboardRefreshRequestedEvent creates a new refresh request.
func NewLeaderboardRefreshRequestedEvent(userID, reason string, types ...string) LeaderboardRefreshRequestedEvent {
	return LeaderboardRefreshRequestedEvent{
		BaseEvent: NewBaseEvent(EventLeaderboardRefreshRequested, userID),
		Types:     types,
		Reason:    reason,
	}
}

// LeaderboardRebuiltEvent is emitted after a snapshot was overwritten.
// EnteredTop maps users who newly reached the top of the board to their rank.
type LeaderboardRebuiltEvent struct {
	BaseEvent
	BoardType  string         `json:"board_type"`
	Period     string         `json:"period"`
	Entries    int            `json:"entries"`
	EnteredTop map[string]int `json:"entered_top,omitempty"`
}

// Payload implements Event interface.
func (e LeaderboardRebuiltEvent) Payload() map[string]interface{} {
	entered := make(map[string]interface{}, len(e.EnteredTop))
	for id, rank := range e.EnteredTop {
		entered[id] = rank
	}
	return map[string]interface{}{
		"board_type":  e.BoardType,
		"period":      e.Period,
		"entries":     e.Entries,
		"entered_top": entered,
	}
}

// NewLeaderboardRebuiltEvent creates a new LeaderboardRebuiltEvent.
func NewLeaderboardRebuiltEvent(boardType, period string, entries int, enteredTop map[string]int) LeaderboardRebuiltEvent {
	return LeaderboardRebuiltEvent{
		BaseEvent:  NewBaseEvent(EventLeaderboardRebuilt, boardType+":"+period),
		BoardType:  boardType,
		Period:     period,
		Entries:    entries,
		EnteredTop: enteredTop,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mentorship Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionScheduledEvent is emitted when a mentee books a slot.
type SessionScheduledEvent struct {
	BaseEvent
	MentorID      string    `json:"mentor_id"`
	MenteeID      string    `json:"mentee_id"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

// Payload implements Event interface.
func (e SessionScheduledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor_id":      e.MentorID,
		"mentee_id":      e.MenteeID,
		"scheduled_date": e.ScheduledDate.Format(time.RFC3339),
	}
}

// NewSessionScheduledEvent creates a new SessionScheduledEvent.
func NewSessionScheduledEvent(sessionID, mentorID, menteeID string, at time.Time) SessionScheduledEvent {
	return SessionScheduledEvent{
		BaseEvent:     NewBaseEvent(EventSessionScheduled, sessionID),
		MentorID:      mentorID,
		MenteeID:      menteeID,
		ScheduledDate: at,
	}
}

// SessionStatusChangedEvent is emitted on confirm/complete/cancel.
type SessionStatusChangedEvent struct {
	BaseEvent
	MentorID  string `json:"mentor_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Payload implements Event interface.
func (e SessionStatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"mentor_id":  e.MentorID,
		"old_status": e.OldStatus,
		"new_status": e.NewStatus,
	}
}

// NewSessionStatusChangedEvent creates a new SessionStatusChangedEvent.
func NewSessionStatusChangedEvent(sessionID, mentorID, oldStatus, newStatus string) SessionStatusChangedEvent {
	return SessionStatusChangedEvent{
		BaseEvent: NewBaseEvent(EventSessionStatusChanged, sessionID),
		MentorID:  mentorID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport between processes.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
