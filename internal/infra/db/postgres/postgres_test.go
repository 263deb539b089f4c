package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"villabook/internal/app/middleware"
	appoutbox "villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

// openTestDB connects to VILLABOOK_TEST_POSTGRES_DSN and migrates it.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("VILLABOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VILLABOOK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrate must be repeatable")
	return db
}

func newTestBooking(t *testing.T, propertyID, start, end string) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.Parse(start, end)
	require.NoError(t, err)
	b, err := domainbooking.NewPending(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(uuid.NewString()),
		PropertyID: domainproperties.PropertyID(propertyID),
		UserID:     "user-1",
		Range:      dr,
		Guests:     2,
		Price:      pricing.CalculateBookingPrice(money.Must(100, "USD"), dr),
		OrderID:    "ORDER-" + uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return b
}

func TestBookingExclusionConstraint(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	factory := Factory{DB: db}
	propertyID := "pg-" + uuid.NewString()

	first := newTestBooking(t, propertyID, "2031-03-01", "2031-03-05")
	err := uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Insert(ctx, []*domainbooking.Booking{first})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)

	overlapping := newTestBooking(t, propertyID, "2031-03-04", "2031-03-06")
	err = uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Insert(ctx, []*domainbooking.Booking{overlapping})
	})
	require.ErrorIs(t, err, domainbooking.ErrOverlap)

	adjacent := newTestBooking(t, propertyID, "2031-03-05", "2031-03-07")
	err = uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Insert(ctx, []*domainbooking.Booking{adjacent})
	})
	require.NoError(t, err, "check-out day is free for the next arrival")

	err = uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		stored, err := unit.Bookings().ByID(ctx, first.ID)
		if err != nil {
			return err
		}
		if err := stored.Cancel("test", time.Now().UTC()); err != nil {
			return err
		}
		return unit.Bookings().Save(ctx, stored)
	})
	require.NoError(t, err)

	err = uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Insert(ctx, []*domainbooking.Booking{overlapping})
	})
	require.NoError(t, err, "cancelled bookings release their nights")

	stale := first.Clone()
	err = uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		return unit.Bookings().Save(ctx, stale)
	})
	require.ErrorIs(t, err, domainbooking.ErrStaleBooking)
}

func TestBookingInsertRollsBackWithUnit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	factory := Factory{DB: db}
	b := newTestBooking(t, "pg-"+uuid.NewString(), "2031-04-01", "2031-04-03")

	boom := errors.New("boom")
	err := uow.Run(ctx, factory, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Insert(ctx, []*domainbooking.Booking{b}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = NewBookingRepository(db).ByID(ctx, b.ID)
	require.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestOutboxClaimCycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewOutboxStore(db)
	id := uuid.NewString()

	require.NoError(t, store.Add(ctx, appoutbox.EventRecord{
		ID:         id,
		Name:       "booking.confirmed",
		Payload:    []byte(`{"booking_id":"b-1"}`),
		OccurredAt: time.Now().UTC(),
		Aggregate:  "b-1",
		Headers:    map[string]string{"user_id": "user-1"},
	}))

	claim := func(workerID string) string {
		t.Helper()
		for {
			msg, err := store.Claim(ctx, workerID)
			require.NoError(t, err)
			if msg == nil {
				return ""
			}
			if msg.ID == id {
				assert.Equal(t, "booking.confirmed", msg.Name)
				assert.Equal(t, "user-1", msg.Headers["user_id"])
				return msg.ID
			}
			// leftovers from earlier runs
			require.NoError(t, store.MarkSent(ctx, msg.ID))
		}
	}

	require.Equal(t, id, claim("worker-a"))
	assert.Empty(t, claim("worker-b"), "claimed records are not handed out twice")

	require.NoError(t, store.MarkFailed(ctx, id, time.Now().UTC().Add(-time.Second), "broker down"))
	require.Equal(t, id, claim("worker-b"), "failed records return once due")

	var m outboxModel
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	assert.Equal(t, 1, m.Attempts)
	assert.Equal(t, "broker down", m.LastError)

	require.NoError(t, store.MarkSent(ctx, id))
	assert.Empty(t, claim("worker-c"))
}

func TestIdempotencyStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewIdempotencyStore(db, time.Hour)
	key := "idem-" + uuid.NewString()

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	rec := middleware.IdempotencyRecord{
		Key:        key,
		Payload:    []byte(`{"order_id":"ORDER-1"}`),
		OccurredAt: time.Now().UTC(),
	}
	require.NoError(t, store.Save(ctx, rec))
	rec.ErrorKind = "conflict"
	rec.ErrorCode = "dates_unavailable"
	require.NoError(t, store.Save(ctx, rec), "saving the same key overwrites")

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"order_id":"ORDER-1"}`, string(got.Payload))
	assert.Equal(t, "dates_unavailable", got.ErrorCode)

	expired := NewIdempotencyStore(db, time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, ok, err = expired.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "records older than the ttl are ignored")
}
