package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/middleware"
	"villabook/internal/app/outbox"
	"villabook/internal/app/policies"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
	"villabook/internal/infra/storage/memory"
)

var now = time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls []policies.TransactionRequest
}

func (g *fakeGateway) Provider() string { return "fake" }

func (g *fakeGateway) CreateTransaction(ctx context.Context, req policies.TransactionRequest) (policies.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return policies.Transaction{}, g.err
	}
	return policies.Transaction{Token: "tok-" + req.OrderID, RedirectURL: "https://pay.example/" + req.OrderID}, nil
}

// failingPayments reads through but refuses every write.
type failingPayments struct {
	domainpayments.Repository
}

func (failingPayments) Save(context.Context, *domainpayments.Intent) error {
	return errors.New("disk full")
}

type brokenUnit struct {
	*memory.Unit
}

func (u brokenUnit) Payments() domainpayments.Repository {
	return failingPayments{Repository: u.Unit.Payments()}
}

type env struct {
	store   *memory.Store
	box     *memory.Outbox
	gateway *fakeGateway
	orch    *Orchestrator
	handler *CheckoutHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	box := memory.NewOutbox(nil)
	gw := &fakeGateway{}
	factory := memory.Factory{Store: store}
	orch := &Orchestrator{
		UoWFactory: factory,
		Gateway:    gw,
		Outbox:     box,
		Encoder:    outbox.JSONEventEncoder{},
		Currency:   "USD",
	}
	seedProperty(t, store, "villa-1", 100, 4)
	return &env{
		store:   store,
		box:     box,
		gateway: gw,
		orch:    orch,
		handler: &CheckoutHandler{UoWFactory: factory, Orchestrator: orch},
	}
}

func seedProperty(t *testing.T, store *memory.Store, id string, rate int64, maxGuests int) {
	t.Helper()
	p, err := domainproperties.NewProperty(domainproperties.Params{
		ID:          domainproperties.PropertyID(id),
		Title:       "Villa " + id,
		NightlyRate: money.Must(rate, "USD"),
		MaxGuests:   maxGuests,
		Active:      true,
		Now:         now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Properties.Save(context.Background(), p))
}

func addToCart(t *testing.T, store *memory.Store, id, user, property, start, end string, guests int) {
	t.Helper()
	dr, err := daterange.Parse(start, end)
	require.NoError(t, err)
	item, err := domaincart.NewItem(domaincart.ItemID(id), user, domaincart.Draft{
		PropertyID: domainproperties.PropertyID(property),
		Range:      dr,
		Guests:     guests,
	}, now)
	require.NoError(t, err)
	require.NoError(t, store.Cart.Save(context.Background(), item))
}

func requireCode(t *testing.T, err error, kind apperr.Kind, code string) {
	t.Helper()
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok, "untyped error %v", err)
	assert.Equal(t, kind, typed.Kind)
	assert.Equal(t, code, typed.Code)
}

func TestCheckoutCreatesPendingBookingsAndIntent(t *testing.T) {
	e := newEnv(t)
	addToCart(t, e.store, "it-1", "user-1", "villa-1", "2030-02-01", "2030-02-04", 2)

	res, err := e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	require.NoError(t, err)

	assert.Equal(t, dto.MoneyDTO{Amount: 330, Currency: "USD"}, res.Amount)
	assert.Equal(t, "fake", res.Provider)
	assert.Equal(t, "tok-"+res.OrderID, res.PaymentToken)
	assert.Equal(t, string(domainpayments.StateAwaitingPayment), res.State)
	require.Len(t, res.BookingIDs, 1)

	b, err := e.store.Bookings.ByID(context.Background(), domainbooking.BookingID(res.BookingIDs[0]))
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, b.Status)
	assert.Equal(t, res.OrderID, b.OrderID)
	assert.Equal(t, int64(330), b.Price.Total.Amount)

	intent, err := e.store.Payments.ByOrderID(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(330), intent.Amount.Amount)
	assert.Equal(t, []domainbooking.BookingID{b.ID}, intent.BookingIDs)

	require.Len(t, e.gateway.calls, 1)
	assert.Equal(t, res.OrderID, e.gateway.calls[0].IdempotencyKey)
	assert.Equal(t, int64(330), e.gateway.calls[0].GrossAmount.Amount)

	items, err := e.store.Cart.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 1, "cart stays until payment succeeds")

	pending := e.box.Pending()
	require.NotEmpty(t, pending)
	assert.Equal(t, "booking.requested", pending[0].Name)
}

func TestCheckoutEmptyCart(t *testing.T) {
	e := newEnv(t)
	_, err := e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	requireCode(t, err, apperr.KindConflict, "cart_empty")
	assert.Empty(t, e.gateway.calls)
}

func TestCheckoutRejectsTakenDatesWithoutWriting(t *testing.T) {
	e := newEnv(t)
	seedProperty(t, e.store, "villa-2", 200, 2)
	addToCart(t, e.store, "it-1", "user-2", "villa-1", "2030-02-01", "2030-02-04", 2)
	_, err := e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-2", Now: now})
	require.NoError(t, err)

	addToCart(t, e.store, "it-2", "user-1", "villa-2", "2030-02-01", "2030-02-03", 1)
	addToCart(t, e.store, "it-3", "user-1", "villa-1", "2030-02-03", "2030-02-05", 1)
	_, err = e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	requireCode(t, err, apperr.KindConflict, "dates_unavailable")

	mine, err := e.store.Bookings.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Len(t, e.gateway.calls, 1)
}

func TestCheckoutRepricesFromCurrentRate(t *testing.T) {
	e := newEnv(t)
	addToCart(t, e.store, "it-1", "user-1", "villa-1", "2030-02-01", "2030-02-03", 2)
	seedProperty(t, e.store, "villa-1", 150, 4)

	res, err := e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	require.NoError(t, err)
	assert.Equal(t, int64(330), res.Amount.Amount)
}

func TestCheckoutRejectsInactiveProperty(t *testing.T) {
	e := newEnv(t)
	addToCart(t, e.store, "it-1", "user-1", "villa-1", "2030-02-01", "2030-02-03", 2)
	p, err := e.store.Properties.ByID(context.Background(), "villa-1")
	require.NoError(t, err)
	p.Active = false
	require.NoError(t, e.store.Properties.Save(context.Background(), p))

	_, err = e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	requireCode(t, err, apperr.KindConflict, "property_inactive")
}

func TestCheckoutCompensatesWhenGatewayFails(t *testing.T) {
	e := newEnv(t)
	e.gateway.err = errors.New("gateway down")
	addToCart(t, e.store, "it-1", "user-1", "villa-1", "2030-02-01", "2030-02-04", 2)

	_, err := e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	bookings, err := e.store.Bookings.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, domainbooking.StatusCancelled, bookings[0].Status)
	assert.Equal(t, ReasonCheckoutFailed, bookings[0].CancelReason)

	e.gateway.err = nil
	_, err = e.handler.Handle(context.Background(), CheckoutCommand{UserID: "user-1", Now: now})
	require.NoError(t, err, "dates are free again after compensation")
}

func TestCheckoutCompensatesWhenIntentCannotBeStored(t *testing.T) {
	e := newEnv(t)
	addToCart(t, e.store, "it-1", "user-1", "villa-1", "2030-02-01", "2030-02-04", 2)
	e.orch.UoWFactory = brokenFactory{memory.Factory{Store: e.store}}

	_, err := e.orch.Place(context.Background(), Order{
		UserID: "user-1",
		Lines:  []Line{{PropertyID: "villa-1", Range: daterange.Must(date("2030-02-01"), date("2030-02-04")), Guests: 2}},
		Now:    now,
	})
	require.Error(t, err)

	bookings, err := e.store.Bookings.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, domainbooking.StatusCancelled, bookings[0].Status)
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	e := newEnv(t)
	addToCart(t, e.store, "it-1", "user-1", "villa-1", "2030-02-01", "2030-02-04", 2)

	bus := commands.NewInMemoryBus()
	commands.RegisterHandler(bus, checkoutKey, e.handler)
	chained := middleware.ChainCommands(bus, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))

	cmd := CheckoutCommand{UserID: "user-1", IdempotencyKeyV: "abc", Now: now}
	first, err := commands.Dispatch[CheckoutCommand, *dto.CheckoutResult](context.Background(), chained, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[CheckoutCommand, *dto.CheckoutResult](context.Background(), chained, cmd)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, e.gateway.calls, 1)

	bookings, err := e.store.Bookings.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestConcurrentCheckoutsOfSameDatesAdmitOne(t *testing.T) {
	e := newEnv(t)
	const users = 8
	for i := 0; i < users; i++ {
		user := "user-" + string(rune('a'+i))
		addToCart(t, e.store, "it-"+user, user, "villa-1", "2030-03-01", "2030-03-05", 2)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < users; i++ {
		user := "user-" + string(rune('a'+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.handler.Handle(context.Background(), CheckoutCommand{UserID: user, Now: now})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if typed, ok := apperr.As(err); ok && typed.Code == "dates_unavailable" {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, users-1, conflicts)
	blocking, err := e.store.Bookings.FindBlocking(context.Background(), "villa-1", daterange.Must(date("2030-03-01"), date("2030-03-05")))
	require.NoError(t, err)
	assert.Len(t, blocking, 1)
}

type brokenFactory struct {
	memory.Factory
}

func (f brokenFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return brokenUnit{unit.(*memory.Unit)}, nil
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}
