package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/domain/booking"
	"villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
)

type finderFunc func(ctx context.Context, id properties.PropertyID, dr daterange.DateRange) ([]*booking.Booking, error)

func (f finderFunc) FindBlocking(ctx context.Context, id properties.PropertyID, dr daterange.DateRange) ([]*booking.Booking, error) {
	return f(ctx, id, dr)
}

func stay(start, end string, status booking.Status) *booking.Booking {
	dr, err := daterange.Parse(start, end)
	if err != nil {
		panic(err)
	}
	return &booking.Booking{PropertyID: "villa-1", Range: dr, Status: status}
}

func TestEvaluateIgnoresCancelledAndAdjacent(t *testing.T) {
	want, _ := daterange.Parse("2030-01-04", "2030-01-06")
	existing := []*booking.Booking{
		stay("2030-01-01", "2030-01-04", booking.StatusConfirmed),
		stay("2030-01-06", "2030-01-08", booking.StatusPending),
		stay("2030-01-04", "2030-01-06", booking.StatusCancelled),
		nil,
	}

	res := Evaluate(want, existing)

	assert.True(t, res.Available)
	assert.Empty(t, res.Conflicts)
}

func TestEvaluateReportsConflictsInOrder(t *testing.T) {
	want, _ := daterange.Parse("2030-01-01", "2030-01-10")
	existing := []*booking.Booking{
		stay("2030-01-07", "2030-01-09", booking.StatusCompleted),
		stay("2030-01-02", "2030-01-03", booking.StatusPending),
	}

	res := Evaluate(want, existing)

	require.False(t, res.Available)
	require.Len(t, res.Conflicts, 2)
	assert.Equal(t, existing[1].Range, res.Conflicts[0])
	assert.Equal(t, existing[0].Range, res.Conflicts[1])
}

func TestCheckPropagatesFinderError(t *testing.T) {
	boom := errors.New("boom")
	c := Checker{Bookings: finderFunc(func(context.Context, properties.PropertyID, daterange.DateRange) ([]*booking.Booking, error) {
		return nil, boom
	})}
	dr, _ := daterange.Parse("2030-01-01", "2030-01-02")

	_, err := c.Check(context.Background(), "villa-1", dr)
	require.ErrorIs(t, err, boom)
}
