package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/app/apperr"
	domainbooking "villabook/internal/domain/booking"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
	"villabook/internal/infra/storage/memory"
)

var now = time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)

type storeReader struct {
	store *memory.Store
}

func (r storeReader) Property(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	return r.store.Properties.ByID(ctx, id)
}

type fixture struct {
	store  *memory.Store
	add    *AddItemHandler
	update *UpdateItemHandler
	remove *RemoveItemHandler
	clear  *ClearCartHandler
	get    *GetCartHandler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	p, err := domainproperties.NewProperty(domainproperties.Params{
		ID: "villa-1", Title: "Villa One", NightlyRate: money.Must(100, "USD"), MaxGuests: 4, Active: true, Now: now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Properties.Save(context.Background(), p))
	return fixture{
		store:  store,
		add:    &AddItemHandler{UoWFactory: factory, Currency: "USD"},
		update: &UpdateItemHandler{UoWFactory: factory, Currency: "USD"},
		remove: &RemoveItemHandler{UoWFactory: factory},
		clear:  &ClearCartHandler{UoWFactory: factory},
		get:    &GetCartHandler{UoWFactory: factory, Properties: storeReader{store}, Currency: "USD"},
	}
}

func (f fixture) book(t *testing.T, start, end string) {
	t.Helper()
	dr, err := daterange.Parse(start, end)
	require.NoError(t, err)
	b, err := domainbooking.NewPending(domainbooking.CreateParams{
		ID: domainbooking.BookingID("bk-" + start), PropertyID: "villa-1", UserID: "someone", Range: dr, Guests: 1, OrderID: "ORDER-X", CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Bookings.Insert(context.Background(), []*domainbooking.Booking{b}))
}

func codeOf(err error) string {
	if typed, ok := apperr.As(err); ok {
		return typed.Code
	}
	return ""
}

func TestAddItemAndGetCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.add.Handle(ctx, AddItemCommand{UserID: "user-1", PropertyID: "villa-1", Start: "2030-02-01", End: "2030-02-04", Guests: 2, Now: now})
	require.NoError(t, err)
	assert.Equal(t, "villa-1", item.PropertyID)
	assert.Equal(t, "2030-02-01", item.Dates.Start)

	cart, err := f.get.Handle(ctx, GetCartQuery{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Price.Nights)
	assert.Equal(t, int64(330), cart.Summary.Total.Amount)
	assert.Equal(t, int64(30), cart.Summary.TotalServiceFee.Amount)
	assert.True(t, cart.Summary.AllAvailable)

	other, err := f.get.Handle(ctx, GetCartQuery{UserID: "user-2"})
	require.NoError(t, err)
	assert.Empty(t, other.Items)
	assert.True(t, other.Summary.AllAvailable)
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, "2030-02-02", "2030-02-05")

	cases := []struct {
		name string
		cmd  AddItemCommand
		code string
	}{
		{"reversed dates", AddItemCommand{PropertyID: "villa-1", Start: "2030-02-04", End: "2030-02-01", Guests: 1}, "invalid_dates"},
		{"past start", AddItemCommand{PropertyID: "villa-1", Start: "2030-01-09", End: "2030-01-12", Guests: 1}, "start_in_past"},
		{"too many guests", AddItemCommand{PropertyID: "villa-1", Start: "2030-03-01", End: "2030-03-02", Guests: 5}, "too_many_guests"},
		{"unknown property", AddItemCommand{PropertyID: "nope", Start: "2030-03-01", End: "2030-03-02", Guests: 1}, "property_not_found"},
		{"overlapping booking", AddItemCommand{PropertyID: "villa-1", Start: "2030-02-04", End: "2030-02-06", Guests: 1}, "dates_unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cmd.UserID = "user-1"
			tc.cmd.Now = now
			_, err := f.add.Handle(ctx, tc.cmd)
			require.Error(t, err)
			assert.Equal(t, tc.code, codeOf(err))
		})
	}

	_, err := f.add.Handle(ctx, AddItemCommand{UserID: "user-1", PropertyID: "villa-1", Start: "2030-02-05", End: "2030-02-07", Guests: 1, Now: now})
	require.NoError(t, err, "checking in on a checkout day is allowed")
}

func TestUpdateItemRevalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item, err := f.add.Handle(ctx, AddItemCommand{UserID: "user-1", PropertyID: "villa-1", Start: "2030-02-01", End: "2030-02-03", Guests: 2, Now: now})
	require.NoError(t, err)
	f.book(t, "2030-02-05", "2030-02-08")

	end := "2030-02-06"
	_, err = f.update.Handle(ctx, UpdateItemCommand{UserID: "user-1", ItemID: item.ID, End: &end, Now: now})
	assert.Equal(t, "dates_unavailable", codeOf(err))

	end = "2030-02-05"
	guests := 3
	updated, err := f.update.Handle(ctx, UpdateItemCommand{UserID: "user-1", ItemID: item.ID, End: &end, Guests: &guests, Now: now})
	require.NoError(t, err)
	assert.Equal(t, "2030-02-05", updated.Dates.End)
	assert.Equal(t, "2030-02-01", updated.Dates.Start)
	assert.Equal(t, 3, updated.Guests)

	_, err = f.update.Handle(ctx, UpdateItemCommand{UserID: "user-2", ItemID: item.ID, Guests: &guests, Now: now})
	assert.Equal(t, "cart_item_not_found", codeOf(err))

	bad := "02/06/2030"
	_, err = f.update.Handle(ctx, UpdateItemCommand{UserID: "user-1", ItemID: item.ID, Start: &bad, Now: now})
	assert.Equal(t, "invalid_dates", codeOf(err))
}

func TestRemoveAndClearAreScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.add.Handle(ctx, AddItemCommand{UserID: "user-1", PropertyID: "villa-1", Start: "2030-02-01", End: "2030-02-03", Guests: 1, Now: now})
	require.NoError(t, err)
	_, err = f.add.Handle(ctx, AddItemCommand{UserID: "user-1", PropertyID: "villa-1", Start: "2030-02-01", End: "2030-02-03", Guests: 1, Now: now})
	require.NoError(t, err, "two items of the same user may share dates until checkout")
	_, err = f.add.Handle(ctx, AddItemCommand{UserID: "user-2", PropertyID: "villa-1", Start: "2030-03-01", End: "2030-03-03", Guests: 1, Now: now})
	require.NoError(t, err)

	_, err = f.remove.Handle(ctx, RemoveItemCommand{UserID: "user-2", ItemID: first.ID})
	assert.Equal(t, "cart_item_not_found", codeOf(err))

	_, err = f.remove.Handle(ctx, RemoveItemCommand{UserID: "user-1", ItemID: first.ID})
	require.NoError(t, err)

	cleared, err := f.clear.Handle(ctx, ClearCartCommand{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cleared.Removed)

	other, err := f.get.Handle(ctx, GetCartQuery{UserID: "user-2"})
	require.NoError(t, err)
	assert.Len(t, other.Items, 1)
}

func TestGetCartFlagsLinesBookedSinceAdding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.add.Handle(ctx, AddItemCommand{UserID: "user-1", PropertyID: "villa-1", Start: "2030-02-01", End: "2030-02-03", Guests: 1, Now: now})
	require.NoError(t, err)
	f.book(t, "2030-02-02", "2030-02-04")

	cart, err := f.get.Handle(ctx, GetCartQuery{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.False(t, cart.Items[0].IsAvailable)
	require.Len(t, cart.Items[0].ConflictingDates, 1)
	assert.Equal(t, "2030-02-02", cart.Items[0].ConflictingDates[0].Start)
	assert.False(t, cart.Summary.AllAvailable)
}
