package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/domain/booking"
	"villabook/internal/domain/shared/money"
)

var now = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

func newIntent(t *testing.T) *Intent {
	t.Helper()
	in, err := NewIntent(CreateParams{
		ID:         "pi-1",
		OrderID:    "ORDER-1",
		UserID:     "user-1",
		BookingIDs: []booking.BookingID{"bk-1", "bk-2"},
		Amount:     money.Must(660, "USD"),
		Provider:   "sandbox",
		CreatedAt:  now,
	})
	require.NoError(t, err)
	return in
}

func TestMapGatewayStatus(t *testing.T) {
	cases := []struct {
		status, fraud string
		want          Status
	}{
		{"capture", "accept", StatusCapture},
		{"capture", "", StatusDeny},
		{"capture", "challenge", StatusDeny},
		{"capture", "pending_review", StatusDeny},
		{"Settlement", "", StatusSettlement},
		{"expire", "", StatusExpire},
		{"refund", "", StatusRefund},
		{"pending", "", StatusPending},
	}
	for _, tc := range cases {
		got, err := MapGatewayStatus(tc.status, tc.fraud)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s/%s", tc.status, tc.fraud)
	}

	_, err := MapGatewayStatus("authorize", "")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestNewIntentValidates(t *testing.T) {
	_, err := NewIntent(CreateParams{OrderID: "o", UserID: "u"})
	require.ErrorIs(t, err, ErrInvalidIntent)
	_, err = NewIntent(CreateParams{OrderID: "o", UserID: "u", BookingIDs: []booking.BookingID{"b"}, Amount: money.Must(0, "USD")})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestApplyStatusSuccessIsOneShot(t *testing.T) {
	in := newIntent(t)

	tr := in.ApplyStatus(StatusSettlement, "tx-1", "bank_transfer", now)
	assert.True(t, tr.Changed())
	assert.Equal(t, StatePaid, in.State)
	assert.Equal(t, "tx-1", in.TransactionID)

	tr = in.ApplyStatus(StatusCapture, "", "", now)
	assert.False(t, tr.Changed())
	assert.Equal(t, "tx-1", in.TransactionID)
	assert.Len(t, in.PendingEvents(), 2)
}

func TestApplyStatusFailureKeepsAbandoned(t *testing.T) {
	in := newIntent(t)
	require.NoError(t, in.Abandon(now))
	require.ErrorIs(t, in.Abandon(now), ErrInvalidTransition)

	in.ApplyStatus(StatusExpire, "", "", now)
	assert.Equal(t, StateAbandoned, in.State)
}

func TestApplyStatusPendingStaysAwaiting(t *testing.T) {
	in := newIntent(t)
	tr := in.ApplyStatus(StatusPending, "tx", "", now)
	assert.False(t, tr.Changed())
	assert.Equal(t, StateAwaitingPayment, in.State)
}

func TestVerifyNotification(t *testing.T) {
	in := newIntent(t)
	ok := Notification{Provider: "sandbox", OrderID: "ORDER-1", GrossAmount: "6.60"}
	require.NoError(t, in.Verify(ok))

	withCurrency := ok
	withCurrency.Currency = "usd"
	require.NoError(t, in.Verify(withCurrency))

	other := ok
	other.Provider = "snap"
	require.ErrorIs(t, in.Verify(other), ErrProviderMismatch)

	cheaper := ok
	cheaper.GrossAmount = "0.01"
	require.ErrorIs(t, in.Verify(cheaper), ErrAmountMismatch)

	minorUnits := ok
	minorUnits.GrossAmount = "660"
	require.ErrorIs(t, in.Verify(minorUnits), ErrAmountMismatch)

	garbled := ok
	garbled.GrossAmount = "six"
	require.ErrorIs(t, in.Verify(garbled), ErrAmountMismatch)

	wrongCurrency := ok
	wrongCurrency.Currency = "EUR"
	require.ErrorIs(t, in.Verify(wrongCurrency), ErrAmountMismatch)
}
