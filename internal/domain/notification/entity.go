// Package notification contains the write-only notification model. Records
// are fire-and-forget: producers never wait on delivery and a failed write
// never undoes the action that caused it.
package notification

import (
	"time"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type groups notifications by their source.
type Type string

const (
	// TypeAchievement - a badge was awarded.
	TypeAchievement Type = "achievement"

	// TypeLeaderboard - a ranking changed.
	TypeLeaderboard Type = "leaderboard"

	// TypeSession - a mentorship session was booked or changed.
	TypeSession Type = "session"
)

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	switch t {
	case TypeAchievement, TypeLeaderboard, TypeSession:
		return true
	default:
		return false
	}
}

// String returns the wire name.
func (t Type) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one message addressed to a user.
type Notification struct {
	ID        string         `json:"id"`
	Recipient string         `json:"recipient"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Errors returned by New.
var (
	ErrEmptyRecipient = shared.NewDomainError("notification", "New", shared.ErrValidation, "recipient is required")
	ErrInvalidType    = shared.NewDomainError("notification", "New", shared.ErrValidation, "invalid notification type")
	ErrEmptyMessage   = shared.NewDomainError("notification", "New", shared.ErrValidation, "title or message is required")
)

// NewParams holds the fields a producer supplies.
type NewParams struct {
	ID        string
	Recipient string
	Type      Type
	Title     string
	Message   string
	Metadata  map[string]any
	CreatedAt time.Time
}

// New validates params and builds an unread notification.
func New(p NewParams) (*Notification, error) {
	if p.Recipient == "" {
		return nil, ErrEmptyRecipient
	}
	if !p.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if p.Title == "" && p.Message == "" {
		return nil, ErrEmptyMessage
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return &Notification{
		ID:        p.ID,
		Recipient: p.Recipient,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Metadata:  p.Metadata,
		CreatedAt: p.CreatedAt,
	}, nil
}
