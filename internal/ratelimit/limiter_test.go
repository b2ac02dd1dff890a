package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierLimiterMinuteWindow(t *testing.T) {
	limiter := NewTierLimiter(NewMemoryStore(), false)
	ctx := context.Background()

	limits := Limits{PerMinute: 3, PerHour: 100, PerDay: 1000}

	for i := 0; i < 3; i++ {
		decision, err := limiter.Check(ctx, "key-1", limits)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}

	decision, err := limiter.Check(ctx, "key-1", limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 3, decision.Limit)
}

func TestTierLimiterHourWindow(t *testing.T) {
	store := NewMemoryStore()
	limiter := NewTierLimiter(store, false)
	ctx := context.Background()

	// Minute window is generous; the hour window is the binding one.
	limits := Limits{PerMinute: 100, PerHour: 2}

	for i := 0; i < 2; i++ {
		decision, err := limiter.Check(ctx, "key-1", limits)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}

	decision, err := limiter.Check(ctx, "key-1", limits)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 2, decision.Limit)
}

func TestTierLimiterZeroLimitsUnlimited(t *testing.T) {
	limiter := NewTierLimiter(NewMemoryStore(), false)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		decision, err := limiter.Check(ctx, "key-1", Limits{})
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
}

type failingStore struct{}

func (failingStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	return Decision{}, errors.New("store unavailable")
}

func TestTierLimiterFailClosed(t *testing.T) {
	limiter := NewTierLimiter(failingStore{}, false)

	decision, err := limiter.Check(context.Background(), "key-1", Limits{PerMinute: 10})
	require.Error(t, err)
	assert.False(t, decision.Allowed)
}

func TestTierLimiterFailOpen(t *testing.T) {
	limiter := NewTierLimiter(failingStore{}, true)

	decision, err := limiter.Check(context.Background(), "key-1", Limits{PerMinute: 10})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
