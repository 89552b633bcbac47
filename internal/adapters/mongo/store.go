package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

type Backend interface {
	Load(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Save(ctx context.Context, b domain.Booking, events ...domain.Event) error
}

type eventRecorder interface {
	LogBooking(ctx context.Context, evt domain.Event) error
}

// AuditedStore appends every committed event to the audit trail. Audit
// failures are logged and never fail the save.
type AuditedStore struct {
	next   Backend
	audit  eventRecorder
	logger observability.Logger
}

func NewAuditedStore(next Backend, audit *AuditLogger, logger observability.Logger) *AuditedStore {
	return &AuditedStore{next: next, audit: audit, logger: logger}
}

func (s *AuditedStore) Load(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return s.next.Load(ctx, id)
}

// LoadFresh passes through to a backend that keeps its own read cache.
func (s *AuditedStore) LoadFresh(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if fresh, ok := s.next.(interface {
		LoadFresh(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	}); ok {
		return fresh.LoadFresh(ctx, id)
	}
	return s.next.Load(ctx, id)
}

func (s *AuditedStore) Save(ctx context.Context, b domain.Booking, events ...domain.Event) error {
	if err := s.next.Save(ctx, b, events...); err != nil {
		return err
	}
	for _, evt := range events {
		if err := s.audit.LogBooking(ctx, evt); err != nil {
			s.logger.WithError(err).WithField("event_id", evt.ID).Warn("audit append failed")
		}
	}
	return nil
}

func (s *AuditedStore) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	lister, ok := s.next.(interface {
		ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	})
	if !ok {
		return nil, nil
	}
	return lister.ListDueForCompletion(ctx, now, limit)
}
