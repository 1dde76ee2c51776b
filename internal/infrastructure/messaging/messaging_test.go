package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-core/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{EnableMetrics: true})
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := syncBus()
	var typed, all int

	require.NoError(t, bus.Subscribe(shared.EventBadgeAwarded, func(shared.Event) error { typed++; return nil }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { all++; return nil }))

	require.NoError(t, bus.Publish(shared.NewBadgeAwardedEvent("u1", "b1", "First Mentor", "mentorship", 50)))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2)))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 2, all)
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().TotalPublished)
}

func TestInMemoryEventBus_HandlerFailuresAreContained(t *testing.T) {
	bus := syncBus()
	var after int

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("nope") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { after++; return nil }))

	assert.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2)))
	assert.Equal(t, 1, after)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	var handled atomic.Int32

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2)))
	}
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(5), handled.Load())
	assert.ErrorIs(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	bus := syncBus()
	d := NewDispatcher(DispatcherConfig{
		EventBus:    bus,
		RetryConfig: RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	})
	var calls int
	require.NoError(t, d.Register(shared.EventLevelUp, "flaky", func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2)))
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(2), d.Metrics().Snapshot().TotalRetries)
}

func TestDispatcher_DeadLetters(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		RetryConfig:           RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		EnableDeadLetterQueue: true,
	})
	d.Use(RecoveryMiddleware(d.log))
	d.Use(LoggingMiddleware(d.log))

	require.NoError(t, d.Register(shared.EventLevelUp, "panics", func(shared.Event) error { panic("boom") }))
	var validationCalls int
	require.NoError(t, d.Register(shared.EventLevelUp, "invalid", func(shared.Event) error {
		validationCalls++
		return shared.ValidationError("test", "Handle", "bad payload")
	}))

	err := d.Dispatch(shared.NewLevelUpEvent("u1", 1, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, 1, validationCalls, "validation errors are not retried")

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "panics", entries[0].HandlerName)
	assert.Equal(t, 2, entries[0].Attempts)
	assert.Equal(t, "invalid", entries[1].HandlerName)
	assert.Equal(t, 1, entries[1].Attempts)

	err = d.CheckDeadLetters(time.Minute)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 dead letters")
	assert.Contains(t, err.Error(), "latest invalid")

	assert.NoError(t, d.Dispatch(shared.NewBadgeAwardedEvent("u1", "b", "n", "c", 1)), "no handlers")
}

func TestDispatcher_CheckDeadLettersWindow(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{EnableDeadLetterQueue: true})
	check := d.CheckDeadLetters(time.Minute)
	assert.NoError(t, check(context.Background()))

	d.DeadLetterQueue().Add(DeadLetterEntry{HandlerName: "old", Error: errors.New("x"), FailedAt: time.Now().Add(-time.Hour)})
	assert.NoError(t, check(context.Background()), "outside the window")

	d.DeadLetterQueue().Add(DeadLetterEntry{HandlerName: "notify", Error: errors.New("smtp"), FailedAt: time.Now()})
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 dead letters")
	assert.Contains(t, err.Error(), "(2 queued)")

	disabled := NewDispatcher(DispatcherConfig{})
	assert.NoError(t, disabled.CheckDeadLetters(0)(context.Background()))
}

func TestDeadLetterQueue_Bounded(t *testing.T) {
	q := NewDeadLetterQueue(2)
	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	assert.Equal(t, 2, q.Size())
	assert.Equal(t, "b", q.Entries()[0].HandlerName)
}

// fakeRedis loops published messages back to every subscriber.
type fakeRedis struct {
	mu   sync.Mutex
	subs []chan RedisMessage
	fail bool
}

func (r *fakeRedis) Publish(_ context.Context, channel, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("redis down")
	}
	for _, ch := range r.subs {
		ch <- RedisMessage{Channel: channel, Payload: message}
	}
	return nil
}

func (r *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan RedisMessage, 16)
	r.subs = append(r.subs, ch)
	return ch, nil
}

func (r *fakeRedis) Close() error { return nil }

func TestRedisEventBus_FansOutAcrossInstances(t *testing.T) {
	redis := &fakeRedis{}
	api, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "api"})
	require.NoError(t, err)
	worker, err := NewRedisEventBus(RedisEventBusConfig{Client: redis, InstanceID: "worker"})
	require.NoError(t, err)

	var mu sync.Mutex
	received := map[string][]shared.Event{}
	record := func(name string) shared.EventHandler {
		return func(e shared.Event) error {
			mu.Lock()
			received[name] = append(received[name], e)
			mu.Unlock()
			return nil
		}
	}
	require.NoError(t, api.SubscribeAll(record("api")))
	require.NoError(t, worker.Subscribe(shared.EventLeaderboardRefreshRequested, record("worker")))

	require.NoError(t, api.Publish(shared.NewLeaderboardRefreshRequestedEvent("u1", "badge_awarded")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received["worker"]) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, api.Close())
	require.NoError(t, worker.Close())

	assert.Len(t, received["api"], 1, "own events are not delivered twice")
	remote := received["worker"][0]
	assert.Equal(t, shared.EventLeaderboardRefreshRequested, remote.EventType())
	assert.Equal(t, "u1", remote.AggregateID())
	assert.Equal(t, "badge_awarded", remote.Payload()["reason"])
}

func TestRedisEventBus_LocalDeliveryWhenRedisFails(t *testing.T) {
	redis := &fakeRedis{fail: true}
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         redis,
		LocalBusConfig: InMemoryEventBusConfig{},
	})
	require.NoError(t, err)
	defer bus.Close()

	var got int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { got++; return nil }))
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("u1", 1, 2)))
	assert.Equal(t, 1, got)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, _, err := decodeEvent([]byte("not json"))
	assert.Error(t, err)

	_, _, err = decodeEvent([]byte(`{"payload":{}}`))
	assert.Error(t, err)

	data, err := encodeEvent("x", shared.NewLevelUpEvent("u1", 1, 2))
	require.NoError(t, err)
	origin, event, err := decodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "x", origin)
	assert.Equal(t, shared.EventLevelUp, event.EventType())
}
