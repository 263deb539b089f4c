package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/domain/pricing"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

var created = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *Booking {
	t.Helper()
	dr, err := daterange.Parse("2030-02-01", "2030-02-04")
	require.NoError(t, err)
	b, err := NewPending(CreateParams{
		ID:         "bk-1",
		PropertyID: "villa-1",
		UserID:     "user-1",
		Range:      dr,
		Guests:     2,
		Price:      pricing.CalculateBookingPrice(money.Must(100, "USD"), dr),
		OrderID:    "ORDER-1",
		CreatedAt:  created,
	})
	require.NoError(t, err)
	return b
}

func TestNewPendingRecordsRequested(t *testing.T) {
	b := newPending(t)

	assert.Equal(t, StatusPending, b.Status)
	events := b.PendingEvents()
	require.Len(t, events, 1)
	req, ok := events[0].(Requested)
	require.True(t, ok)
	assert.Equal(t, int64(330), req.Total)
	assert.Equal(t, "ORDER-1", req.OrderID)
}

func TestNewPendingValidates(t *testing.T) {
	dr, _ := daterange.Parse("2030-02-01", "2030-02-02")
	_, err := NewPending(CreateParams{ID: "x", UserID: "u", Range: dr, Guests: 0})
	require.ErrorIs(t, err, ErrInvalidGuests)
	_, err = NewPending(CreateParams{ID: "x", UserID: " ", Range: dr, Guests: 1})
	require.ErrorIs(t, err, ErrUserRequired)
	_, err = NewPending(CreateParams{ID: "x", UserID: "u", Guests: 1})
	require.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestLifecycle(t *testing.T) {
	b := newPending(t)
	require.NoError(t, b.Confirm(created))
	require.ErrorIs(t, b.Confirm(created), ErrInvalidState)

	require.ErrorIs(t, b.Complete(time.Date(2030, 2, 3, 0, 0, 0, 0, time.UTC)), ErrStayNotElapsed)
	require.NoError(t, b.Complete(time.Date(2030, 2, 4, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, StatusCompleted, b.Status)
	assert.True(t, b.Status.Blocks())

	require.ErrorIs(t, b.Cancel("late", created), ErrInvalidState)
}

func TestCancel(t *testing.T) {
	b := newPending(t)
	require.NoError(t, b.Cancel("payment_failed", created))
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, "payment_failed", b.CancelReason)
	assert.False(t, b.Status.Blocks())
	require.ErrorIs(t, b.Cancel("again", created), ErrAlreadyCancelled)
}

func TestCloneDropsEvents(t *testing.T) {
	b := newPending(t)
	c := b.Clone()
	assert.Empty(t, c.PendingEvents())
	assert.Equal(t, b.ID, c.ID)
	assert.Nil(t, (*Booking)(nil).Clone())
}
