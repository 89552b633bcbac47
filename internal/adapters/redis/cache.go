package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/robertarktes/stadium-bookings/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func bookingKey(id uuid.UUID) string {
	return "booking:" + id.String()
}

// GetBooking returns the cached snapshot, or ok == false on a miss.
func (c *Cache) GetBooking(ctx context.Context, id uuid.UUID) (b domain.Booking, ok bool, err error) {
	val, err := c.client.Get(ctx, bookingKey(id)).Bytes()
	if err == redis.Nil {
		return domain.Booking{}, false, nil
	}
	if err != nil {
		return domain.Booking{}, false, err
	}
	if err := json.Unmarshal(val, &b); err != nil {
		return domain.Booking{}, false, err
	}
	return b, true, nil
}

// setBookingScript stores a snapshot unless the cached one is newer.
const setBookingScript = `local cur = redis.call("GET", KEYS[1])
if cur then
  local ok, doc = pcall(cjson.decode, cur)
  if ok and type(doc) == "table" and tonumber(doc["version"]) and tonumber(doc["version"]) > tonumber(ARGV[2]) then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1`

// SetBooking caches b unless a later version is already cached, so a slow
// read-through fill cannot overwrite a snapshot written by a newer save.
func (c *Cache) SetBooking(ctx context.Context, b domain.Booking, ttl time.Duration) (stored bool, err error) {
	data, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	n, err := c.client.Eval(ctx, setBookingScript, []string{bookingKey(b.ID)}, string(data), b.Version, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Cache) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, bookingKey(id)).Err()
}
