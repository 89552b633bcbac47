package completion

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

type Lister interface {
	ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type Completer interface {
	CompleteBooking(ctx context.Context, id uuid.UUID, now time.Time) (domain.Booking, error)
}

// Worker completes confirmed bookings whose slot has ended.
type Worker struct {
	lister      Lister
	completer   Completer
	logger      observability.Logger
	batch       int
	concurrency int
	maxRetries  int
	backoff     time.Duration
	now         func() time.Time
}

func NewWorker(lister Lister, completer Completer, logger observability.Logger, batch int) *Worker {
	if batch <= 0 {
		batch = 50
	}
	return &Worker{
		lister:      lister,
		completer:   completer,
		logger:      logger,
		batch:       batch,
		concurrency: 4,
		maxRetries:  3,
		backoff:     time.Second,
		now:         time.Now,
	}
}

func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				w.logger.WithError(err).Error("completion sweep failed")
				continue
			}
			if n > 0 {
				w.logger.WithField("completed", n).Info("completed elapsed bookings")
			}
		}
	}
}

// Sweep completes one batch of due bookings and returns how many it closed.
// A booking that fails is logged and left for the next sweep.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	now := w.now()
	ids, err := w.lister.ListDueForCompletion(ctx, now, w.batch)
	if err != nil {
		return 0, err
	}

	results := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := w.completeWithRetry(gctx, id, now); err != nil {
				w.logger.WithError(err).WithField("booking_id", id).Warn("failed to complete booking")
				return nil
			}
			results[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	completed := 0
	for _, ok := range results {
		if ok {
			completed++
		}
	}
	observability.CompletedBookings.Add(float64(completed))
	return completed, nil
}

func (w *Worker) completeWithRetry(ctx context.Context, id uuid.UUID, now time.Time) error {
	var err error
	for i := 0; i < w.maxRetries; i++ {
		_, err = w.completer.CompleteBooking(ctx, id, now)
		if err == nil {
			return nil
		}
		// Only storage trouble is worth retrying; the booking may have been
		// cancelled or completed in the meantime.
		if !errors.Is(err, domain.ErrStorage) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<i) * w.backoff):
		}
	}
	return errors.Wrapf(err, "failed after %d retries", w.maxRetries)
}
