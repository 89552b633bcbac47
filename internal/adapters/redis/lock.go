package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// Locker is a Redis SET NX lock shared by every API instance. The TTL bounds
// how long a crashed holder can block a booking.
type Locker struct {
	client   *redis.Client
	ttl      time.Duration
	retry    time.Duration
	newToken func() string
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{client: client, ttl: ttl, retry: 25 * time.Millisecond, newToken: uuid.NewString}
}

func lockKey(key string) string {
	return "lock:booking:" + key
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := l.newToken()
	fullKey := lockKey(key)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "acquire lock %s", fullKey)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "acquire lock %s", fullKey)
		case <-time.After(l.retry):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		l.client.Eval(ctx, unlockScript, []string{fullKey}, token)
	}, nil
}
