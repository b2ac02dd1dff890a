package ratelimit

import (
	"context"
	"log"
	"time"
)

// Limits is a key's rate-limit snapshot. A zero threshold disables that
// window.
type Limits struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// TierLimiter enforces a key's minute, hour, and day windows against a
// shared counter store. Whether a store failure lets the request through
// is an explicit deployment decision.
type TierLimiter struct {
	store    CounterStore
	failOpen bool
}

func NewTierLimiter(store CounterStore, failOpen bool) *TierLimiter {
	return &TierLimiter{store: store, failOpen: failOpen}
}

// Check increments every configured window and returns the first
// rejection, or the minute-window decision when all pass. Coarser windows
// are still counted when a finer one rejects nothing, so the day counter
// reflects real traffic.
func (l *TierLimiter) Check(ctx context.Context, keyID string, limits Limits) (Decision, error) {
	windows := []struct {
		window time.Duration
		limit  int
	}{
		{time.Minute, limits.PerMinute},
		{time.Hour, limits.PerHour},
		{24 * time.Hour, limits.PerDay},
	}

	var primary Decision
	havePrimary := false

	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}

		decision, err := l.store.IncrementAndCheck(ctx, keyID, w.window, w.limit)
		if err != nil {
			log.Printf("rate limit store error for key %s: %v", keyID, err)
			if l.failOpen {
				return Decision{Allowed: true, Limit: w.limit, Remaining: w.limit}, nil
			}
			return Decision{Allowed: false, Limit: w.limit}, err
		}

		if !decision.Allowed {
			return decision, nil
		}
		if !havePrimary {
			primary = decision
			havePrimary = true
		}
	}

	if !havePrimary {
		// No windows configured: unlimited key.
		return Decision{Allowed: true}, nil
	}

	return primary, nil
}
