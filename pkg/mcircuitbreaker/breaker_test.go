package mcircuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_StaysClosedBelowThreshold(t *testing.T) {
	b := NewBreaker(DefaultSettings(), nil)
	boom := errors.New("boom")

	for i := 0; i < 4; i++ {
		err := b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return boom
		})
		assert.Equal(t, boom, err)
	}

	ob := b.operation("postJournalEntry")
	ob.mu.Lock()
	state := ob.state
	ob.mu.Unlock()
	assert.Equal(t, StateClosed, state)
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(DefaultSettings(), nil)
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return boom
		})
	}

	err := b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
		t.Fatal("fn should not run while breaker is open")
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	settings := DefaultSettings()
	settings.RecoveryTimeout = 1 * time.Millisecond
	b := NewBreaker(settings, nil)
	boom := errors.New("boom")

	for i := 0; i < int(settings.FailureThreshold); i++ {
		_ = b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return boom
		})
	}

	time.Sleep(5 * time.Millisecond)

	called := false
	err := b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	settings := DefaultSettings()
	settings.RecoveryTimeout = 1 * time.Millisecond
	settings.SuccessThreshold = 2
	b := NewBreaker(settings, nil)
	boom := errors.New("boom")

	for i := 0; i < int(settings.FailureThreshold); i++ {
		_ = b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return boom
		})
	}
	time.Sleep(5 * time.Millisecond)

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	}

	ob := b.operation("postJournalEntry")
	ob.mu.Lock()
	state := ob.state
	ob.mu.Unlock()
	assert.Equal(t, StateClosed, state)
}

func TestBreaker_NotifiesListenerOnTransition(t *testing.T) {
	listener := &mockListener{}
	b := NewBreaker(DefaultSettings(), NewLibCommonsAdapter(listener))
	boom := errors.New("boom")

	for i := 0; i < int(DefaultSettings().FailureThreshold); i++ {
		_ = b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return boom
		})
	}

	require.NotEmpty(t, listener.calls)
	last := listener.calls[len(listener.calls)-1]
	assert.Equal(t, StateClosed, last.FromState)
	assert.Equal(t, StateOpen, last.ToState)
}

func TestBreaker_IndependentPerOperation(t *testing.T) {
	b := NewBreaker(DefaultSettings(), nil)
	boom := errors.New("boom")

	for i := 0; i < int(DefaultSettings().FailureThreshold); i++ {
		_ = b.Execute(context.Background(), "postJournalEntry", func(ctx context.Context) error {
			return boom
		})
	}

	err := b.Execute(context.Background(), "createAccount", func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}
