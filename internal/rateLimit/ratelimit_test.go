package rateLimit

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "github.com/robertarktes/stadium-bookings/internal/adapters/redis"
)

func newLimiter(t *testing.T) (*RateLimiter, redismock.ClientMock, string) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	rl := NewRateLimiter(redisadapter.NewCache(client))
	fixed := time.Date(2026, 10, 17, 9, 0, 30, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	return rl, mock, windowKey("user:u-1", time.Minute, fixed)
}

func TestRateLimiter_AllowsUpToRate(t *testing.T) {
	rl, mock, key := newLimiter(t)

	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(3)
	mock.ExpectExpire(key, time.Minute).SetVal(true)

	ok, err := rl.Allow(context.Background(), "user:u-1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(context.Background(), "user:u-1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RedisError(t *testing.T) {
	rl, mock, key := newLimiter(t)

	mock.ExpectIncr(key).SetErr(errors.New("connection refused"))

	ok, err := rl.Allow(context.Background(), "user:u-1", 2, time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestWindowKey_ChangesPerWindow(t *testing.T) {
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, windowKey("ip:1", time.Minute, base), windowKey("ip:1", time.Minute, base.Add(59*time.Second)))
	assert.NotEqual(t, windowKey("ip:1", time.Minute, base), windowKey("ip:1", time.Minute, base.Add(time.Minute)))
}
