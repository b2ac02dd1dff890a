package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// CounterStore is the atomic increment-and-check primitive behind the
// limiter. Implementations must guarantee that concurrent calls for the
// same key never both observe the last remaining slot: the increment and
// the comparison are one operation.
type CounterStore interface {
	IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Decision, error)
}

// windowIndex computes the fixed window a moment falls in. Counters keyed
// by (key, index) naturally expire when the clock crosses a boundary.
func windowIndex(now time.Time, window time.Duration) int64 {
	return now.Unix() / int64(window.Seconds())
}

func windowReset(now time.Time, window time.Duration) time.Time {
	secs := int64(window.Seconds())
	next := (now.Unix()/secs + 1) * secs
	return time.Unix(next, 0)
}
