package payments

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/app/apperr"
	appoutbox "villabook/internal/app/outbox"
	"villabook/internal/app/policies"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
	"villabook/internal/infra/gateway"
	"villabook/internal/infra/storage/memory"
)

const serverKey = "test-server-key"

var (
	now    = time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)
	amount = money.Must(55000, "USD")
)

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []policies.Notice
	success   []policies.Notice
	failed    []policies.Notice
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, notice policies.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, notice)
	return nil
}

func (n *recordingNotifier) PaymentSuccess(_ context.Context, notice policies.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, notice)
	return nil
}

func (n *recordingNotifier) PaymentFailed(_ context.Context, notice policies.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, notice)
	return nil
}

type env struct {
	store    *memory.Store
	notifier *recordingNotifier
	handler  *ReconcileHandler
	orderID  string
	bookings []domainbooking.BookingID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	p, err := domainproperties.NewProperty(domainproperties.Params{
		ID: "villa-1", Title: "Villa One", NightlyRate: money.Must(100, "USD"), MaxGuests: 4, Active: true, Now: now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Properties.Save(ctx, p))

	e := &env{store: store, notifier: &recordingNotifier{}, orderID: "ORDER-1"}
	var batch []*domainbooking.Booking
	for i, dates := range [][2]string{{"2030-02-01", "2030-02-04"}, {"2030-02-10", "2030-02-12"}} {
		dr, err := daterange.Parse(dates[0], dates[1])
		require.NoError(t, err)
		b, err := domainbooking.NewPending(domainbooking.CreateParams{
			ID:         domainbooking.BookingID("bk-" + string(rune('1'+i))),
			PropertyID: "villa-1",
			UserID:     "user-1",
			Range:      dr,
			Guests:     2,
			Price:      pricing.CalculateBookingPrice(p.NightlyRate, dr),
			OrderID:    e.orderID,
			CreatedAt:  now,
		})
		require.NoError(t, err)
		batch = append(batch, b)
		e.bookings = append(e.bookings, b.ID)

		item, err := domaincart.NewItem(domaincart.ItemID("it-"+string(rune('1'+i))), "user-1", domaincart.Draft{PropertyID: "villa-1", Range: dr, Guests: 2}, now)
		require.NoError(t, err)
		require.NoError(t, store.Cart.Save(ctx, item))
	}
	require.NoError(t, store.Bookings.Insert(ctx, batch))

	intent, err := domainpayments.NewIntent(domainpayments.CreateParams{
		ID: "pi-1", OrderID: e.orderID, UserID: "user-1", BookingIDs: e.bookings,
		Amount: amount, Provider: gateway.ProviderSandbox, CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Payments.Save(ctx, intent))

	e.handler = &ReconcileHandler{
		UoWFactory: memory.Factory{Store: store},
		Decoders: map[string]policies.NotificationDecoder{
			gateway.ProviderSandbox: gateway.SnapDecoder{Provider: gateway.ProviderSandbox, ServerKey: serverKey},
			gateway.ProviderSnap:    gateway.SnapDecoder{Provider: gateway.ProviderSnap, ServerKey: serverKey},
		},
		Notifier: e.notifier,
		Outbox:   memory.NewOutbox(nil),
		Encoder:  appoutbox.JSONEventEncoder{},
	}
	return e
}

func (e *env) notify(t *testing.T, status, fraud string) ReconcileCommand {
	t.Helper()
	body, err := gateway.Sandbox{ServerKey: serverKey}.Notification(e.orderID, status, fraud, amount)
	require.NoError(t, err)
	return ReconcileCommand{Provider: gateway.ProviderSandbox, Payload: body, ReceivedAt: now.Add(time.Minute)}
}

func (e *env) statuses(t *testing.T) []domainbooking.Status {
	t.Helper()
	var out []domainbooking.Status
	for _, id := range e.bookings {
		b, err := e.store.Bookings.ByID(context.Background(), id)
		require.NoError(t, err)
		out = append(out, b.Status)
	}
	return out
}

func TestSettlementConfirmsBookingsAndClearsCart(t *testing.T) {
	e := newEnv(t)

	res, err := e.handler.Handle(context.Background(), e.notify(t, "settlement", ""))
	require.NoError(t, err)

	assert.True(t, res.Applied)
	assert.Equal(t, string(domainpayments.StatePaid), res.State)
	assert.Equal(t, 2, res.CartItemsFreed)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusConfirmed, domainbooking.StatusConfirmed}, e.statuses(t))
	assert.Len(t, e.notifier.confirmed, 2)
	assert.Equal(t, "Villa One", e.notifier.confirmed[0].PropertyTitle)
	require.Len(t, e.notifier.success, 1)
	assert.Equal(t, amount, e.notifier.success[0].Amount)

	items, err := e.store.Cart.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReplayedSettlementIsHarmless(t *testing.T) {
	e := newEnv(t)
	cmd := e.notify(t, "settlement", "")
	_, err := e.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	item, err := domaincart.NewItem("it-new", "user-1", domaincart.Draft{
		PropertyID: "villa-1", Range: daterange.Must(now.AddDate(0, 2, 0), now.AddDate(0, 2, 2)), Guests: 1,
	}, now)
	require.NoError(t, err)
	require.NoError(t, e.store.Cart.Save(context.Background(), item))

	res, err := e.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Zero(t, res.CartItemsFreed)
	assert.Len(t, e.notifier.success, 1)
	assert.Len(t, e.notifier.confirmed, 2)

	items, err := e.store.Cart.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 1, "a replay must not clear a cart filled after payment")
}

func TestCaptureWithFraudChallengeCancels(t *testing.T) {
	e := newEnv(t)

	res, err := e.handler.Handle(context.Background(), e.notify(t, "capture", "challenge"))
	require.NoError(t, err)

	assert.Equal(t, string(domainpayments.StatusDeny), res.Status)
	assert.Equal(t, string(domainpayments.StateFailed), res.State)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusCancelled, domainbooking.StatusCancelled}, e.statuses(t))
	assert.Len(t, e.notifier.failed, 1)
	assert.Empty(t, e.notifier.success)

	items, err := e.store.Cart.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 2, "cart stays for a retry")
}

func TestCaptureWithoutFraudVerdictCancels(t *testing.T) {
	e := newEnv(t)

	res, err := e.handler.Handle(context.Background(), e.notify(t, "capture", ""))
	require.NoError(t, err)

	assert.Equal(t, string(domainpayments.StatusDeny), res.Status)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusCancelled, domainbooking.StatusCancelled}, e.statuses(t))
	assert.Empty(t, e.notifier.confirmed)
	assert.Empty(t, e.notifier.success)
}

func TestNotificationFromAnotherProviderIsRejected(t *testing.T) {
	e := newEnv(t)
	cmd := e.notify(t, "settlement", "")
	cmd.Provider = gateway.ProviderSnap

	_, err := e.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAuthentication, typed.Kind)
	assert.Equal(t, "provider_mismatch", typed.Code)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusPending, domainbooking.StatusPending}, e.statuses(t))

	intent, err := e.store.Payments.ByOrderID(context.Background(), e.orderID)
	require.NoError(t, err)
	assert.Equal(t, domainpayments.StatusPending, intent.Status)
}

func TestUnderpaidNotificationIsRejected(t *testing.T) {
	e := newEnv(t)
	for _, gross := range []money.Money{money.Must(100, "USD"), money.Must(55000, "EUR")} {
		body, err := gateway.Sandbox{ServerKey: serverKey}.Notification(e.orderID, "settlement", "", gross)
		require.NoError(t, err)

		_, err = e.handler.Handle(context.Background(), ReconcileCommand{Provider: gateway.ProviderSandbox, Payload: body, ReceivedAt: now})
		require.Error(t, err)
		typed, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindConflict, typed.Kind, gross.String())
		assert.Equal(t, "amount_mismatch", typed.Code, gross.String())
	}
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusPending, domainbooking.StatusPending}, e.statuses(t))
	assert.Empty(t, e.notifier.success)

	items, err := e.store.Cart.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStaleBookingMapsToConflict(t *testing.T) {
	err := classify(fmt.Errorf("save: %w", domainbooking.ErrStaleBooking))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPendingNotificationChangesNothing(t *testing.T) {
	e := newEnv(t)

	res, err := e.handler.Handle(context.Background(), e.notify(t, "pending", ""))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusPending, domainbooking.StatusPending}, e.statuses(t))
}

func TestBadSignatureIsRejected(t *testing.T) {
	e := newEnv(t)
	body, err := gateway.Sandbox{ServerKey: "someone-else"}.Notification(e.orderID, "settlement", "", amount)
	require.NoError(t, err)

	_, err = e.handler.Handle(context.Background(), ReconcileCommand{Provider: gateway.ProviderSandbox, Payload: body})
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAuthentication, typed.Kind)
	assert.Equal(t, "invalid_signature", typed.Code)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusPending, domainbooking.StatusPending}, e.statuses(t))
}

func TestUnknownOrderAndProvider(t *testing.T) {
	e := newEnv(t)
	body, err := gateway.Sandbox{ServerKey: serverKey}.Notification("ORDER-404", "settlement", "", money.Must(100, "USD"))
	require.NoError(t, err)

	_, err = e.handler.Handle(context.Background(), ReconcileCommand{Provider: gateway.ProviderSandbox, Payload: body})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = e.handler.Handle(context.Background(), ReconcileCommand{Provider: "paypal", Payload: body})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMalformedPayload(t *testing.T) {
	e := newEnv(t)
	_, err := e.handler.Handle(context.Background(), ReconcileCommand{Provider: gateway.ProviderSandbox, Payload: []byte("{")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestSuccessAfterAbandonKeepsBookingsCancelled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	intent, err := e.store.Payments.ByOrderID(ctx, e.orderID)
	require.NoError(t, err)
	require.NoError(t, intent.Abandon(now))
	require.NoError(t, e.store.Payments.Save(ctx, intent))
	for _, id := range e.bookings {
		b, err := e.store.Bookings.ByID(ctx, id)
		require.NoError(t, err)
		require.NoError(t, b.Cancel("checkout_abandoned", now))
		require.NoError(t, e.store.Bookings.Save(ctx, b))
	}

	res, err := e.handler.Handle(ctx, e.notify(t, "settlement", ""))
	require.NoError(t, err)
	assert.Equal(t, string(domainpayments.StatePaid), res.State)
	assert.True(t, res.NeedsRefund)
	assert.Zero(t, res.CartItemsFreed)
	assert.Equal(t, []domainbooking.Status{domainbooking.StatusCancelled, domainbooking.StatusCancelled}, e.statuses(t))
	assert.Empty(t, e.notifier.confirmed)
	assert.Empty(t, e.notifier.success, "no success notice for bookings that were released")

	items, err := e.store.Cart.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, items, 2, "the cart survives so the guest can book again")
}

type memoryArchive struct {
	keys []string
}

func (a *memoryArchive) Archive(_ context.Context, key string, _ io.Reader, _ string) error {
	a.keys = append(a.keys, key)
	return nil
}

func TestPayloadIsArchivedEvenWhenRejected(t *testing.T) {
	e := newEnv(t)
	archive := &memoryArchive{}
	e.handler.Archive = archive

	_, err := e.handler.Handle(context.Background(), ReconcileCommand{Provider: gateway.ProviderSandbox, Payload: []byte(`{"order_id":"ORDER-1"}`), ReceivedAt: now})
	require.Error(t, err)
	require.Len(t, archive.keys, 1)
	assert.Contains(t, archive.keys[0], "webhooks/sandbox/ORDER-1/")
}
