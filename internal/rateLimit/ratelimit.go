package rateLimit

import (
	"context"
	"strconv"
	"time"

	redisadapter "github.com/robertarktes/stadium-bookings/internal/adapters/redis"
)

// RateLimiter counts requests per key in fixed windows of length period.
type RateLimiter struct {
	redis *redisadapter.Cache
	now   func() time.Time
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis, now: time.Now}
}

func windowKey(key string, period time.Duration, now time.Time) string {
	window := now.UnixNano() / int64(period)
	return "rl:" + key + ":" + strconv.FormatInt(window, 10)
}

// Allow reports whether one more request under key fits in rate per period.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error) {
	fullKey := windowKey(key, period, rl.now())

	pipe := rl.redis.Client().Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, period)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(rate), nil
}
