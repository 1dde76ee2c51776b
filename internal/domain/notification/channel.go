package notification

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SINK
// ══════════════════════════════════════════════════════════════════════════════

// Sink accepts notifications. Callers treat every error as best-effort.
type Sink interface {
	Notify(ctx context.Context, n *Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n *Notification) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}

// MultiSink fans one notification out to several sinks. Every sink is
// tried; the joined error lists the ones that failed.
type MultiSink []Sink

// Notify implements Sink.
func (m MultiSink) Notify(ctx context.Context, n *Notification) error {
	var errs []error
	for i, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores notifications and is itself a Sink.
type Repository interface {
	Sink

	// ListByRecipient returns the newest notifications first, at most limit.
	ListByRecipient(ctx context.Context, recipient string, limit int) ([]*Notification, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// AchievementParams builds an achievement notification.
func AchievementParams(id, userID, badgeID, badgeName, icon string, points int, at time.Time) NewParams {
	return NewParams{
		ID:        id,
		Recipient: userID,
		Type:      TypeAchievement,
		Title:     "New badge earned!",
		Message:   fmt.Sprintf("%s You earned the %q badge (+%d points)", icon, badgeName, points),
		Metadata: map[string]any{
			"badgeId":   badgeID,
			"badgeName": badgeName,
			"points":    points,
		},
		CreatedAt: at,
	}
}

// SessionParams builds a session notification for recipient.
func SessionParams(id, recipient, sessionID, title, message string, at time.Time) NewParams {
	return NewParams{
		ID:        id,
		Recipient: recipient,
		Type:      TypeSession,
		Title:     title,
		Message:   message,
		Metadata:  map[string]any{"sessionId": sessionID},
		CreatedAt: at,
	}
}
