package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/stadium-bookings/internal/domain"
)

const DefaultStorageTimeout = 3 * time.Second

// Store persists bookings keyed by id. Events passed to Save must be recorded
// atomically with the booking when the backend supports it.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	Save(ctx context.Context, b domain.Booking, events ...domain.Event) error
}

// FreshLoader is implemented by stores that keep a read cache in front of
// the authoritative copy. Transitions load through it so they never build on
// a stale snapshot.
type FreshLoader interface {
	LoadFresh(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

type CreateRequest struct {
	StadiumID     string
	BookedBy      string
	StartsAt      time.Time
	DurationHours float64
	PricePerHour  decimal.Decimal
}

// Service runs booking transitions. It never logs; callers own observability.
type Service struct {
	store          Store
	locker         Locker
	clock          Clock
	storageTimeout time.Duration
	newID          func() uuid.UUID
}

type Option func(*Service)

func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storageTimeout = d
		}
	}
}

func WithIDGenerator(fn func() uuid.UUID) Option { return func(s *Service) { s.newID = fn } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		locker:         NewKeyedMutex(),
		clock:          SystemClock,
		storageTimeout: DefaultStorageTimeout,
		newID:          uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now exposes the service clock to transports that do not carry their own.
func (s *Service) Now() time.Time { return s.clock.Now() }

func (s *Service) CreateBooking(ctx context.Context, req CreateRequest) (domain.Booking, error) {
	now := s.clock.Now()
	b, err := domain.NewBooking(domain.NewBookingParams{
		ID:            s.newID(),
		StadiumID:     req.StadiumID,
		BookedBy:      req.BookedBy,
		StartsAt:      req.StartsAt,
		DurationHours: req.DurationHours,
		PricePerHour:  req.PricePerHour,
	}, now)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := s.save(ctx, b, domain.NewEvent(domain.EventBookingCreated, b, now)); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return s.load(ctx, id)
}

// ConfirmPayment trusts proof as reported by the payment collaborator.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, proof domain.PaymentProof) (domain.Booking, error) {
	return s.transition(ctx, id, domain.EventBookingConfirmed, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.ConfirmPayment(proof, now)
	})
}

func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason string, now time.Time) (domain.Booking, error) {
	return s.transitionAt(ctx, id, now, domain.EventBookingCancelled, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.Cancel(reason, now)
	})
}

// CompleteBooking closes a confirmed booking whose slot ended by now.
func (s *Service) CompleteBooking(ctx context.Context, id uuid.UUID, now time.Time) (domain.Booking, error) {
	return s.transitionAt(ctx, id, now, domain.EventBookingCompleted, func(b domain.Booking, now time.Time) (domain.Booking, error) {
		return b.Complete(now)
	})
}

func (s *Service) QuoteRefund(ctx context.Context, id uuid.UUID, now time.Time) (domain.RefundQuote, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return domain.RefundQuote{}, err
	}
	return b.QuoteRefund(now)
}

type transitionFunc func(b domain.Booking, now time.Time) (domain.Booking, error)

func (s *Service) transition(ctx context.Context, id uuid.UUID, evt domain.EventType, fn transitionFunc) (domain.Booking, error) {
	return s.transitionAt(ctx, id, time.Time{}, evt, fn)
}

func (s *Service) transitionAt(ctx context.Context, id uuid.UUID, now time.Time, evt domain.EventType, fn transitionFunc) (domain.Booking, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	unlock, err := s.locker.Lock(lockCtx, id.String())
	cancel()
	if err != nil {
		return domain.Booking{}, domain.StorageError(err, "lock booking")
	}
	defer unlock()

	current, err := s.loadFresh(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if now.IsZero() {
		now = s.clock.Now()
	}
	next, err := fn(current, now)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := s.save(ctx, next, domain.NewEvent(evt, next, now)); err != nil {
		return domain.Booking{}, err
	}
	return next, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := s.call(ctx, "load booking", func(ctx context.Context) error {
		var err error
		b, err = s.store.Load(ctx, id)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (s *Service) loadFresh(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	fresh, ok := s.store.(FreshLoader)
	if !ok {
		return s.load(ctx, id)
	}
	var b domain.Booking
	err := s.call(ctx, "load booking", func(ctx context.Context) error {
		var err error
		b, err = fresh.LoadFresh(ctx, id)
		return err
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (s *Service) save(ctx context.Context, b domain.Booking, events ...domain.Event) error {
	return s.call(ctx, "save booking", func(ctx context.Context) error {
		return s.store.Save(ctx, b, events...)
	})
}

// call bounds a store operation by the storage timeout even when the store
// ignores its context.
func (s *Service) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return domain.StorageError(err, op)
	case <-ctx.Done():
		return domain.StorageError(ctx.Err(), op)
	}
}
