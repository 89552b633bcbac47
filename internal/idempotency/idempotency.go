package idempotency

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	redisadapter "github.com/robertarktes/stadium-bookings/internal/adapters/redis"
)

// ErrInFlight is returned by Begin while another request holds the key.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

type Response = redisadapter.IdempResponse

// Backend stores finished responses and in-flight reservations.
type Backend interface {
	Get(ctx context.Context, key string) (*Response, error)
	Set(ctx context.Context, key string, resp Response, ttl time.Duration) error
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	backend     Backend
	ttl         time.Duration
	inflightTTL time.Duration
}

func NewIdempotency(backend Backend, ttl time.Duration) *Idempotency {
	return &Idempotency{backend: backend, ttl: ttl, inflightTTL: 30 * time.Second}
}

// Begin returns the recorded response for key if there is one. Otherwise it
// reserves key for the caller, who must follow up with Complete or Abort.
func (i *Idempotency) Begin(ctx context.Context, key string) (*Response, error) {
	resp, err := i.backend.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency lookup")
	}
	if resp != nil {
		return resp, nil
	}
	ok, err := i.backend.Reserve(ctx, key, i.inflightTTL)
	if err != nil {
		return nil, errors.Wrap(err, "idempotency reserve")
	}
	if !ok {
		return nil, ErrInFlight
	}
	return nil, nil
}

// Complete records resp under key and drops the reservation. Server errors are
// not recorded so the client can retry with the same key.
func (i *Idempotency) Complete(ctx context.Context, key string, resp Response) error {
	defer i.backend.Release(ctx, key)
	if resp.Status >= 500 {
		return nil
	}
	return errors.Wrap(i.backend.Set(ctx, key, resp, i.ttl), "idempotency record")
}

func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.backend.Release(ctx, key)
}
