package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

// Backend is the authoritative booking store behind the cache.
type Backend interface {
	Load(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Save(ctx context.Context, b domain.Booking, events ...domain.Event) error
}

// CachedStore reads through Redis and collapses concurrent misses for the
// same booking into one backend load. Cache failures fall back to the backend.
// Transitions read through LoadFresh and never act on a cached snapshot.
type CachedStore struct {
	next   Backend
	cache  *Cache
	ttl    time.Duration
	logger observability.Logger
	group  singleflight.Group
}

func NewCachedStore(next Backend, cache *Cache, ttl time.Duration, logger observability.Logger) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (s *CachedStore) Load(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, ok, err := s.cache.GetBooking(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", id).Warn("booking cache read failed")
	}
	if ok {
		return b, nil
	}

	v, err, _ := s.group.Do(id.String(), func() (interface{}, error) {
		return s.LoadFresh(ctx, id)
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return v.(domain.Booking), nil
}

// LoadFresh skips the cached snapshot and reads the backend, refilling the
// cache on the way out. It never joins an in-flight fill, whose read may
// predate the caller's lock.
func (s *CachedStore) LoadFresh(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := s.next.Load(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	s.store(ctx, b)
	return b, nil
}

// Save writes to the backend first, then caches the committed snapshot. Fills
// racing with it carry an older version and are ignored.
func (s *CachedStore) Save(ctx context.Context, b domain.Booking, events ...domain.Event) error {
	if err := s.next.Save(ctx, b, events...); err != nil {
		return err
	}
	s.store(ctx, b)
	return nil
}

func (s *CachedStore) store(ctx context.Context, b domain.Booking) {
	stored, err := s.cache.SetBooking(ctx, b, s.ttl)
	if err == nil {
		if !stored {
			s.logger.WithField("booking_id", b.ID).WithField("version", b.Version).Debug("newer booking already cached")
		}
		return
	}
	s.logger.WithError(err).WithField("booking_id", b.ID).Warn("booking cache write failed")
	if err := s.cache.DeleteBooking(ctx, b.ID); err != nil {
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("booking cache invalidation failed")
	}
}

// ListDueForCompletion delegates to the backend when it supports listing.
func (s *CachedStore) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	lister, ok := s.next.(interface {
		ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	})
	if !ok {
		return nil, nil
	}
	return lister.ListDueForCompletion(ctx, now, limit)
}
