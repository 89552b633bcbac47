package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/stadium-bookings/internal/domain"
)

// Store keeps bookings and their events in process memory.
type Store struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]domain.Booking
	events   []domain.Event
}

func NewStore() *Store {
	return &Store{bookings: make(map[uuid.UUID]domain.Booking)}
}

func (s *Store) Load(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.NotFoundErrorf("booking %s not found", id)
	}
	return b, nil
}

// Save inserts version 1 and otherwise requires the stored version to be the
// one directly preceding b.Version.
func (s *Store) Save(ctx context.Context, b domain.Booking, events ...domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bookings[b.ID]
	switch {
	case !ok && b.Version != 1:
		return domain.NotFoundErrorf("booking %s not found", b.ID)
	case ok && existing.Version != b.Version-1:
		return errors.Mark(
			errors.Newf("booking %s: stored version %d, incoming version %d", b.ID, existing.Version, b.Version),
			domain.ErrConflict,
		)
	}
	s.bookings[b.ID] = b
	s.events = append(s.events, events...)
	return nil
}

// ListDueForCompletion returns confirmed bookings whose slot ended by now.
func (s *Store) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []domain.Booking
	for _, b := range s.bookings {
		if b.Status == domain.StatusConfirmed && !b.ScheduledEnd().After(now) {
			due = append(due, b)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].StartsAt.Before(due[j].StartsAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]uuid.UUID, len(due))
	for i, b := range due {
		ids[i] = b.ID
	}
	return ids, nil
}

// Events returns a copy of every event saved so far.
func (s *Store) Events() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Event(nil), s.events...)
}
