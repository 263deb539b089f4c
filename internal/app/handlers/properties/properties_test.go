package properties

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/middleware"
	"villabook/internal/app/queries"
	domainbooking "villabook/internal/domain/booking"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
	"villabook/internal/infra/cache"
	"villabook/internal/infra/storage/memory"
)

var now = time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)

type countingReader struct {
	next  UnitReader
	reads atomic.Int32
}

func (r *countingReader) Property(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	r.reads.Add(1)
	return r.next.Property(ctx, id)
}

type fixture struct {
	store    *memory.Store
	commands commands.Bus
	queries  queries.Bus
	reader   *countingReader
	cache    *cache.PropertyCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	factory := memory.Factory{Store: store}
	reader := &countingReader{next: UnitReader{UoWFactory: factory}}
	pc := cache.NewPropertyCache(reader, 10, time.Minute)
	t.Cleanup(pc.Stop)

	cmdBus := commands.NewInMemoryBus()
	commands.RegisterHandler(cmdBus, UpsertPropertyCommand{}.Key(), &UpsertPropertyHandler{
		UoWFactory:      factory,
		Outbox:          memory.NewOutbox(nil),
		Cache:           pc,
		DefaultCurrency: "USD",
		Now:             func() time.Time { return now },
	})
	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, GetPropertyQuery{}.Key(), &GetPropertyHandler{Reader: pc})
	queries.RegisterHandler(queryBus, CheckAvailabilityQuery{}.Key(), &CheckAvailabilityHandler{UoWFactory: factory})

	validator := middleware.NewStructValidator()
	return &fixture{
		store: store,
		commands: middleware.ChainCommands(cmdBus,
			middleware.Validation(validator),
			middleware.Authorization(middleware.RoleAuthorizer{}),
			middleware.Transaction(factory, nil),
		),
		queries: middleware.ChainQueries(queryBus, middleware.QueryValidation(validator)),
		reader:  reader,
		cache:   pc,
	}
}

func (f *fixture) upsert(t *testing.T, cmd UpsertPropertyCommand) error {
	t.Helper()
	if cmd.ActorUserID == "" {
		cmd.ActorUserID = "admin-1"
	}
	_, err := commands.Dispatch[UpsertPropertyCommand, any](context.Background(), f.commands, cmd)
	return err
}

func villa(rate int64) UpsertPropertyCommand {
	return UpsertPropertyCommand{
		ActorUserRole:    "admin",
		PropertyID:       "villa-1",
		Title:            "Villa One",
		NightlyRateMinor: rate,
		MaxGuests:        4,
		Active:           true,
	}
}

func TestUpsertRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	cmd := villa(100)
	cmd.ActorUserRole = "guest"
	err := f.upsert(t, cmd)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	cmd.ActorUserID = ""
	_, err = commands.Dispatch[UpsertPropertyCommand, any](context.Background(), f.commands, cmd)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))

	err = f.upsert(t, villa(0))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.store.Properties.ByID(context.Background(), "villa-1")
	assert.ErrorIs(t, err, domainproperties.ErrNotFound)
}

func TestUpsertInvalidatesCachedProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.upsert(t, villa(100)))

	for range 3 {
		got, err := queries.Ask[GetPropertyQuery, dto.Property](ctx, f.queries, GetPropertyQuery{PropertyID: "villa-1"})
		require.NoError(t, err)
		assert.Equal(t, "villa-1", got.ID)
	}
	assert.Equal(t, int32(1), f.reader.reads.Load())

	require.NoError(t, f.upsert(t, villa(150)))
	p, err := f.cache.Property(ctx, "villa-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), p.NightlyRate.Amount)
	assert.Equal(t, "USD", p.NightlyRate.Currency)
	assert.Equal(t, int32(2), f.reader.reads.Load())

	_, err = queries.Ask[GetPropertyQuery, dto.Property](ctx, f.queries, GetPropertyQuery{PropertyID: "missing"})
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "property_not_found", typed.Code)
}

func TestCachedCopiesAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.upsert(t, villa(100)))

	first, err := f.cache.Property(ctx, "villa-1")
	require.NoError(t, err)
	first.Title = "changed"
	second, err := f.cache.Property(ctx, "villa-1")
	require.NoError(t, err)
	assert.Equal(t, "Villa One", second.Title)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.upsert(t, villa(100)))

	dr, err := daterange.Parse("2030-02-01", "2030-02-04")
	require.NoError(t, err)
	b, err := domainbooking.NewPending(domainbooking.CreateParams{
		ID:         "b-1",
		PropertyID: "villa-1",
		UserID:     "user-1",
		Range:      dr,
		Guests:     2,
		Price:      pricing.CalculateBookingPrice(money.Must(100, "USD"), dr),
		OrderID:    "ORDER-1",
		CreatedAt:  now,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Bookings.Insert(ctx, []*domainbooking.Booking{b}))

	ask := func(start, end string) (dto.Availability, error) {
		return queries.Ask[CheckAvailabilityQuery, dto.Availability](ctx, f.queries, CheckAvailabilityQuery{
			PropertyID: "villa-1", Start: start, End: end,
		})
	}

	res, err := ask("2030-02-03", "2030-02-06")
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Nil(t, res.Price)
	require.Len(t, res.ConflictingDates, 1)
	assert.Equal(t, dto.DateRangeDTO{Start: "2030-02-01", End: "2030-02-04"}, res.ConflictingDates[0])

	res, err = ask("2030-02-04", "2030-02-07")
	require.NoError(t, err)
	assert.True(t, res.Available)
	require.NotNil(t, res.Price)
	assert.Equal(t, 3, res.Price.Nights)
	assert.Equal(t, int64(330), res.Price.Total.Amount)

	_, err = ask("2030-02-07", "2030-02-04")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = ask("2030-02-07", "bad")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	inactive := villa(100)
	inactive.Active = false
	require.NoError(t, f.upsert(t, inactive))
	res, err = ask("2030-03-01", "2030-03-02")
	require.NoError(t, err)
	assert.False(t, res.Available)
}
