package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/leaderboard"
	"github.com/campus-connect/campus-core/internal/domain/notification"
	"github.com/campus-connect/campus-core/internal/domain/shared"
)

type blockingRebuilder struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingRebuilder() *blockingRebuilder {
	return &blockingRebuilder{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRebuilder) RebuildAll(context.Context) ([]*leaderboard.Snapshot, error) {
	if r.calls.Add(1) == 1 {
		close(r.started)
		<-r.release
	}
	return nil, r.err
}

func TestOnRefreshRequested_Coalesces(t *testing.T) {
	rb := newBlockingRebuilder()
	h := NewOnRefreshRequestedHandler(rb, time.Second, nil)
	event := shared.NewLeaderboardRefreshRequestedEvent("u1", "badge_awarded")

	done := make(chan error, 1)
	go func() { done <- h.Handle(event) }()
	<-rb.started

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Handle(event))
	}
	close(rb.release)

	require.NoError(t, <-done)
	assert.Equal(t, int32(2), rb.calls.Load(), "queued requests collapse into one rebuild")

	require.NoError(t, h.Handle(event))
	assert.Equal(t, int32(3), rb.calls.Load())
}

func TestOnRefreshRequested_ReportsFailure(t *testing.T) {
	rb := newBlockingRebuilder()
	close(rb.release)
	rb.err = errors.New("storage down")
	h := NewOnRefreshRequestedHandler(rb, time.Second, nil)

	err := h.Handle(shared.NewLeaderboardRefreshRequestedEvent("u1", "badge_awarded"))
	assert.EqualError(t, err, "storage down")

	assert.NoError(t, h.Handle(shared.NewActivityTrackedEvent("u1", "project_created", 1, 1)))
}

type collectSink struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (s *collectSink) Notify(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return nil
}

func (s *collectSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type payloadEvent struct {
	eventType shared.EventType
	payload   map[string]interface{}
}

func (e payloadEvent) EventType() shared.EventType { return e.eventType }
func (e payloadEvent) OccurredAt() time.Time { return time.Time{} }
func (e payloadEvent) AggregateID() string { return "" }
func (e payloadEvent) Payload() map[string]interface{} { return e.payload }

func newRankHandler(sink notification.Sink) *OnRankChangedHandler {
	var n atomic.Int64
	ids := shared.IDFunc(func() string { return fmt.Sprintf("n-%d", n.Add(1)) })
	return NewOnRankChangedHandler(sink, ids, nil, nil, DefaultRankChangedConfig())
}

func TestOnRankChanged_NotifiesEnteredTop(t *testing.T) {
	sink := &collectSink{}
	h := newRankHandler(sink)
	clock := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return clock }

	event := shared.NewLeaderboardRebuiltEvent("overall", "all-time", 40, map[string]int{"u1": 3})
	require.NoError(t, h.Handle(event))
	require.Equal(t, 1, sink.len())
	assert.Equal(t, notification.TypeLeaderboard, sink.items[0].Type)
	assert.Equal(t, "u1", sink.items[0].Recipient)
	assert.Equal(t, 3, sink.items[0].Metadata["rank"])

	require.NoError(t, h.Handle(event))
	assert.Equal(t, 1, sink.len(), "cooldown suppresses repeats")

	clock = clock.Add(7 * time.Hour)
	require.NoError(t, h.Handle(event))
	assert.Equal(t, 2, sink.len())
}

func TestOnRankChanged_IgnoresUnannouncedBoards(t *testing.T) {
	sink := &collectSink{}
	h := newRankHandler(sink)

	require.NoError(t, h.Handle(shared.NewLeaderboardRebuiltEvent("projects", "monthly", 10, map[string]int{"u1": 1})))
	require.NoError(t, h.Handle(shared.NewLeaderboardRebuiltEvent("overall", "all-time", 10, nil)))
	require.NoError(t, h.Handle(shared.NewBadgeAwardedEvent("u1", "b", "First Mentor", "mentorship", 50)))
	assert.Equal(t, 0, sink.len())
}

func TestOnRankChanged_DecodedPayload(t *testing.T) {
	sink := &collectSink{}
	h := newRankHandler(sink)

	require.NoError(t, h.Handle(payloadEvent{
		eventType: shared.EventLeaderboardRebuilt,
		payload: map[string]interface{}{
			"board_type":  "mentorship",
			"period":      "all-time",
			"entered_top": map[string]interface{}{"u9": float64(2)},
		},
	}))
	require.Equal(t, 1, sink.len())
	assert.Equal(t, "u9", sink.items[0].Recipient)
}
