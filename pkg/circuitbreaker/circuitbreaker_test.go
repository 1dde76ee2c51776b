package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Settings{Name: "redis", FailureThreshold: 2, Cooldown: time.Minute})
	boom := errors.New("boom")

	assert.Equal(t, boom, b.Execute(context.Background(), func(context.Context) error { return boom }))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, boom, b.Execute(context.Background(), func(context.Context) error { return boom }))
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	now := time.Now()
	b := New(Settings{Name: "redis", FailureThreshold: 1, Cooldown: time.Second})
	b.now = func() time.Time { return now }

	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("down") })
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Second)
	assert.NoError(t, b.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FallbackOnOpen(t *testing.T) {
	b := New(Settings{Name: "redis", FailureThreshold: 1, Cooldown: time.Hour})
	_ = b.Execute(context.Background(), func(context.Context) error { return errors.New("down") })

	var got error
	err := b.ExecuteWithFallback(context.Background(),
		func(context.Context) error { return nil },
		func(err error) error {
			got = err
			return nil
		})
	assert.NoError(t, err)
	assert.ErrorIs(t, got, ErrOpen)
}
