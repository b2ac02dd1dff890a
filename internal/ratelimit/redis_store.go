package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/209works/api-platform/internal/storage"
)

// RedisStore backs the counter contract with one Redis counter per
// (key, window index). INCR returns the post-increment count, so the
// check-then-increment is a single atomic operation on the Redis side.
type RedisStore struct {
	redis *storage.RedisClient
}

func NewRedisStore(redis *storage.RedisClient) *RedisStore {
	return &RedisStore{redis: redis}
}

func (s *RedisStore) IncrementAndCheck(ctx context.Context, key string, window time.Duration, limit int) (Decision, error) {
	now := time.Now()
	idx := windowIndex(now, window)
	redisKey := fmt.Sprintf("ratelimit:%s:%d:%d", key, int64(window.Seconds()), idx)

	count, err := s.redis.Incr(ctx, redisKey)
	if err != nil {
		return Decision{}, err
	}

	if count == 1 {
		// First hit in this window; the extra second covers clock skew
		// between the app and Redis.
		s.redis.Expire(ctx, redisKey, window+time.Second)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetTime: windowReset(now, window),
	}, nil
}
