package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process counter store for tests and single-node
// deployments. A mutex around the map makes increment-and-check atomic.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	index int64
	count int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	idx := windowIndex(now, window)
	storeKey := key + "/" + window.String()

	c, ok := s.counters[storeKey]
	if !ok || c.index != idx {
		c = &memoryCounter{index: idx}
		s.counters[storeKey] = c
	}
	c.count++

	remaining := limit - c.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   c.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: windowReset(now, window),
	}, nil
}
