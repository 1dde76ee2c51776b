package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campus-connect/campus-core/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Notify implements notification.Sink.
func (r *NotificationRepository) Notify(ctx context.Context, n *notification.Notification) error {
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return storageErr("notification", "Notify", fmt.Errorf("marshal metadata: %w", err))
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO notifications (id, recipient, type, title, message, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.Recipient, string(n.Type), n.Title, n.Message, data, n.Read, n.CreatedAt)
	return storageErr("notification", "Notify", err)
}

// ListByRecipient implements notification.Repository. A non-positive limit
// returns every notification.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipient string, limit int) ([]*notification.Notification, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id, recipient, type, title, message, metadata, read, created_at
		FROM notifications WHERE recipient = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, recipient, limitArg)
	if err != nil {
		return nil, storageErr("notification", "ListByRecipient", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*notification.Notification, error) {
		var n notification.Notification
		var data []byte
		if err := row.Scan(&n.ID, &n.Recipient, &n.Type, &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		return &n, nil
	})
	if err != nil {
		return nil, storageErr("notification", "ListByRecipient", err)
	}
	return list, nil
}
