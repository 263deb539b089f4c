package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holdDates struct{ PropertyID string }

func (holdDates) Key() string { return "bookings.hold" }

type releaseDates struct{}

func (releaseDates) Key() string { return "bookings.release" }

func TestDispatchRoutesByKey(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, holdDates{}.Key(), HandlerFunc[holdDates, string](func(_ context.Context, cmd holdDates) (string, error) {
		return "held " + cmd.PropertyID, nil
	}))

	res, err := Dispatch[holdDates, string](context.Background(), bus, holdDates{PropertyID: "villa-1"})
	require.NoError(t, err)
	assert.Equal(t, "held villa-1", res)
	assert.Equal(t, []string{"bookings.hold"}, bus.Keys())
}

func TestDispatchErrorsNameTheKey(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler(bus, holdDates{}.Key(), HandlerFunc[holdDates, string](func(context.Context, holdDates) (string, error) {
		return "ok", nil
	}))

	_, err := Dispatch[releaseDates, string](context.Background(), bus, releaseDates{})
	require.ErrorIs(t, err, ErrHandlerNotFound)
	assert.Contains(t, err.Error(), `"bookings.release"`)

	_, err = Dispatch[holdDates, int](context.Background(), bus, holdDates{})
	require.ErrorIs(t, err, ErrResultType)
	assert.Contains(t, err.Error(), `"bookings.hold" returned string, want int`)

	_, err = Dispatch[holdDates, string](context.Background(), nil, holdDates{})
	require.ErrorIs(t, err, ErrNilBus)
}

func TestRegisterTwicePanics(t *testing.T) {
	bus := NewInMemoryBus()
	h := HandlerFunc[holdDates, string](func(context.Context, holdDates) (string, error) { return "", nil })
	RegisterHandler(bus, holdDates{}.Key(), h)
	assert.Panics(t, func() { RegisterHandler(bus, holdDates{}.Key(), h) })
}
