package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/stadium-bookings/internal/adapters/memory"
	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

var now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newBooking(t *testing.T) domain.Booking {
	t.Helper()
	b, err := domain.NewBooking(domain.NewBookingParams{
		StadiumID:     "stadium-1",
		StartsAt:      now.Add(48 * time.Hour),
		DurationHours: 2,
		PricePerHour:  decimal.NewFromInt(8000),
	}, now)
	require.NoError(t, err)
	return b
}

func TestCachedStore_MissFillsCache(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	backend := memory.NewStore()
	b := newBooking(t)
	require.NoError(t, backend.Save(ctx, b))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	mock.ExpectGet(bookingKey(b.ID)).RedisNil()
	mock.ExpectEval(setBookingScript, []string{bookingKey(b.ID)}, string(data), b.Version, time.Minute.Milliseconds()).SetVal(int64(1))

	store := NewCachedStore(backend, NewCache(client), time.Minute, observability.NewDiscardLogger())
	loaded, err := store.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_HitSkipsBackend(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	b := newBooking(t)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	mock.ExpectGet(bookingKey(b.ID)).SetVal(string(data))

	store := NewCachedStore(memory.NewStore(), NewCache(client), time.Minute, observability.NewDiscardLogger())
	loaded, err := store.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
	assert.True(t, b.TotalPrice.Equal(loaded.TotalPrice))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_CacheErrorFallsBackToBackend(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	backend := memory.NewStore()
	b := newBooking(t)
	require.NoError(t, backend.Save(ctx, b))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	mock.ExpectGet(bookingKey(b.ID)).SetErr(errors.New("connection refused"))
	mock.ExpectEval(setBookingScript, []string{bookingKey(b.ID)}, string(data), b.Version, time.Minute.Milliseconds()).SetErr(errors.New("connection refused"))
	mock.ExpectDel(bookingKey(b.ID)).SetErr(errors.New("connection refused"))

	store := NewCachedStore(backend, NewCache(client), time.Minute, observability.NewDiscardLogger())
	loaded, err := store.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)
}

func TestCachedStore_SaveWritesSnapshot(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	b := newBooking(t)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	mock.ExpectEval(setBookingScript, []string{bookingKey(b.ID)}, string(data), b.Version, time.Minute.Milliseconds()).SetVal(int64(1))

	store := NewCachedStore(memory.NewStore(), NewCache(client), time.Minute, observability.NewDiscardLogger())
	require.NoError(t, store.Save(ctx, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_SaveDropsSnapshotWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	b := newBooking(t)

	data, err := json.Marshal(b)
	require.NoError(t, err)
	mock.ExpectEval(setBookingScript, []string{bookingKey(b.ID)}, string(data), b.Version, time.Minute.Milliseconds()).SetErr(errors.New("READONLY"))
	mock.ExpectDel(bookingKey(b.ID)).SetVal(1)

	store := NewCachedStore(memory.NewStore(), NewCache(client), time.Minute, observability.NewDiscardLogger())
	require.NoError(t, store.Save(ctx, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_LoadFreshSkipsCache(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	backend := memory.NewStore()
	b := newBooking(t)
	require.NoError(t, backend.Save(ctx, b))

	data, err := json.Marshal(b)
	require.NoError(t, err)
	mock.ExpectEval(setBookingScript, []string{bookingKey(b.ID)}, string(data), b.Version, time.Minute.Milliseconds()).SetVal(int64(0))

	store := NewCachedStore(backend, NewCache(client), time.Minute, observability.NewDiscardLogger())
	loaded, err := store.LoadFresh(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Version, loaded.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_SaveFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	b := newBooking(t)
	b.Version = 2

	store := NewCachedStore(memory.NewStore(), NewCache(client), time.Minute, observability.NewDiscardLogger())
	err := store.Save(ctx, b)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_RetriesUntilAcquired(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewLocker(client, 10*time.Second)
	locker.retry = time.Millisecond
	locker.newToken = func() string { return "token-1" }

	mock.ExpectSetNX("lock:booking:b-1", "token-1", 10*time.Second).SetVal(false)
	mock.ExpectSetNX("lock:booking:b-1", "token-1", 10*time.Second).SetVal(true)
	mock.ExpectEval(unlockScript, []string{"lock:booking:b-1"}, "token-1").SetVal(int64(1))

	unlock, err := locker.Lock(context.Background(), "b-1")
	require.NoError(t, err)
	unlock()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_GivesUpOnContext(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewLocker(client, 10*time.Second)
	locker.retry = 50 * time.Millisecond
	locker.newToken = func() string { return "token-1" }

	mock.ExpectSetNX("lock:booking:b-1", "token-1", 10*time.Second).SetVal(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := locker.Lock(ctx, "b-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIdempotency_GetSet(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	idemp := NewIdempotency(client)

	resp := IdempResponse{Status: 201, ContentType: "application/json", Result: []byte(`{"id":"1"}`)}
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	mock.ExpectGet("idemp:missing").RedisNil()
	mock.ExpectSet("idemp:key-1", data, time.Hour).SetVal("OK")
	mock.ExpectGet("idemp:key-1").SetVal(string(data))
	mock.ExpectSetNX("idemp:inflight:key-1", 1, time.Minute).SetVal(true)
	mock.ExpectDel("idemp:inflight:key-1").SetVal(1)

	got, err := idemp.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, idemp.Set(ctx, "key-1", resp, time.Hour))
	got, err = idemp.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, &resp, got)

	ok, err := idemp.Reserve(ctx, "key-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, idemp.Release(ctx, "key-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
