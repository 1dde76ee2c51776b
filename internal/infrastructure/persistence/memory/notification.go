package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/campus-connect/campus-core/internal/domain/notification"
)

// NotificationRepo implements notification.Repository.
type NotificationRepo struct {
	mu    sync.RWMutex
	items []*notification.Notification
}

// NewNotificationRepo creates an empty repository.
func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{}
}

// Notify implements notification.Sink.
func (r *NotificationRepo) Notify(_ context.Context, n *notification.Notification) error {
	c := *n
	r.mu.Lock()
	r.items = append(r.items, &c)
	r.mu.Unlock()
	return nil
}

// ListByRecipient implements notification.Repository.
func (r *NotificationRepo) ListByRecipient(_ context.Context, recipient string, limit int) ([]*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*notification.Notification, 0)
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].Recipient == recipient {
			c := *r.items[i]
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
