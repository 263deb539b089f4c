package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message interface{ Key() string }

type ping struct{}

func (ping) Key() string { return "ping" }

type pong struct{}

func (pong) Key() string { return "pong" }

func TestAddRejectsWiringMistakes(t *testing.T) {
	table := New[message]("commands")
	ok := Typed[message](ping{}.Key(), func(context.Context, ping) (string, error) { return "pong", nil })
	table.Add("ping", ok)

	assert.PanicsWithValue(t, `commands: handler for "ping" registered twice`, func() { table.Add("ping", ok) })
	assert.PanicsWithValue(t, "commands: empty key registration", func() { table.Add("", ok) })
	assert.Panics(t, func() { table.Add("nil", nil) })
	assert.Equal(t, []string{"ping"}, table.Keys())
}

func TestTypedReportsMismatch(t *testing.T) {
	fn := Typed[message]("ping", func(context.Context, ping) (string, error) { return "pong", nil })

	res, err := fn(context.Background(), ping{})
	require.NoError(t, err)
	assert.Equal(t, "pong", res)

	_, err = fn(context.Background(), pong{})
	require.ErrorIs(t, err, ErrMessageType)
	assert.Contains(t, err.Error(), `"ping" expects registry.ping, got registry.pong`)
}

func TestKeysSorted(t *testing.T) {
	table := New[message]("queries")
	noop := func(context.Context, message) (any, error) { return nil, nil }
	for _, k := range []string{"reviews.list", "cart.get", "properties.get"} {
		table.Add(k, noop)
	}
	assert.Equal(t, []string{"cart.get", "properties.get", "reviews.list"}, table.Keys())

	_, found := table.Lookup("bookings.mine")
	assert.False(t, found)
}
