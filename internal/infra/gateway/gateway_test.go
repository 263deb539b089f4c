package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	"villabook/internal/app/policies"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/shared/money"
)

func request() policies.TransactionRequest {
	return policies.TransactionRequest{
		OrderID:        "ORDER-1",
		GrossAmount:    money.Must(33000, "USD"),
		Customer:       policies.Customer{ID: "user-1", Email: "guest@example.com", Name: "Guest"},
		Items:          []policies.LineItem{{ID: "b-1", Name: "Villa One 2030-02-01..2030-02-04", Price: money.Must(33000, "USD"), Quantity: 1}},
		IdempotencyKey: "idem-1",
	}
}

func TestSandboxNotificationVerifies(t *testing.T) {
	sb := Sandbox{ServerKey: "server-key"}
	tx, err := sb.CreateTransaction(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "sandbox-ORDER-1", tx.Token)

	body, err := sb.Notification("ORDER-1", "settlement", "accept", money.Must(33000, "USD"))
	require.NoError(t, err)
	n, err := SnapDecoder{Provider: ProviderSandbox, ServerKey: "server-key"}.Decode(body, "")
	require.NoError(t, err)
	assert.Equal(t, ProviderSandbox, n.Provider)
	assert.Equal(t, "330.00", n.GrossAmount)
	assert.Equal(t, "USD", n.Currency)
	assert.Equal(t, "200", n.StatusCode)

	_, err = SnapDecoder{Provider: ProviderSandbox, ServerKey: "other-key"}.Decode(body, "")
	assert.ErrorIs(t, err, domainpayments.ErrInvalidSignature)

	pending, err := sb.Notification("ORDER-1", "pending", "", money.Must(33000, "USD"))
	require.NoError(t, err)
	n, err = SnapDecoder{ServerKey: "server-key"}.Decode(pending, "")
	require.NoError(t, err)
	assert.Equal(t, "201", n.StatusCode)
	assert.Equal(t, ProviderSnap, n.Provider)
}

func TestSandboxRedirectOnlyWithReturnURL(t *testing.T) {
	tx, err := Sandbox{ServerKey: "k"}.CreateTransaction(context.Background(), request())
	require.NoError(t, err)
	assert.Empty(t, tx.RedirectURL)

	tx, err = Sandbox{ServerKey: "k", ReturnURL: "http://localhost:3000/checkout/done"}.CreateTransaction(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/checkout/done?order_id=ORDER-1", tx.RedirectURL)
}

func TestSnapDecoderRejectsMalformed(t *testing.T) {
	d := SnapDecoder{ServerKey: "k"}
	_, err := d.Decode([]byte("{"), "")
	assert.ErrorIs(t, err, domainpayments.ErrMalformedNotification)
	_, err = d.Decode([]byte(`{"order_id":"ORDER-1"}`), "")
	assert.ErrorIs(t, err, domainpayments.ErrMalformedNotification)
}

// fakeMidtrans stands in for the SDK transport and records what Snap was sent.
type fakeMidtrans struct {
	method   string
	url      string
	apiKey   string
	options  *midtrans.ConfigOptions
	sent     sentSnapRequest
	response string
	fail     *midtrans.Error
}

type sentSnapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails []struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
	} `json:"item_details"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func (f *fakeMidtrans) Call(method, url string, apiKey *string, options *midtrans.ConfigOptions, body io.Reader, result interface{}) *midtrans.Error {
	f.method, f.url, f.options = method, url, options
	if apiKey != nil {
		f.apiKey = *apiKey
	}
	if err := json.NewDecoder(body).Decode(&f.sent); err != nil {
		return &midtrans.Error{Message: err.Error()}
	}
	if f.fail != nil {
		return f.fail
	}
	if err := json.Unmarshal([]byte(f.response), result); err != nil {
		return &midtrans.Error{Message: err.Error()}
	}
	return nil
}

func TestSnapCreateTransaction(t *testing.T) {
	transport := &fakeMidtrans{response: `{"token":"tok-1","redirect_url":"https://pay.example/tok-1"}`}
	gw, err := NewSnap("server-key", SnapEnvironment(false), transport, nil)
	require.NoError(t, err)

	tx, err := gw.CreateTransaction(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tx.Token)
	assert.Equal(t, "https://pay.example/tok-1", tx.RedirectURL)

	assert.Equal(t, http.MethodPost, transport.method)
	assert.Contains(t, transport.url, "/snap/v1/transactions")
	assert.Equal(t, "server-key", transport.apiKey)
	require.NotNil(t, transport.options)
	require.NotNil(t, transport.options.PaymentIdempotencyKey)
	assert.Equal(t, "idem-1", *transport.options.PaymentIdempotencyKey)
	assert.Equal(t, "ORDER-1", transport.sent.TransactionDetails.OrderID)
	assert.Equal(t, int64(330), transport.sent.TransactionDetails.GrossAmount, "snap takes whole units")
	require.Len(t, transport.sent.ItemDetails, 1)
	assert.Equal(t, int64(330), transport.sent.ItemDetails[0].Price)
	assert.Equal(t, "guest@example.com", transport.sent.CustomerDetails.Email)
}

func TestSnapCreateTransactionErrors(t *testing.T) {
	transport := &fakeMidtrans{fail: &midtrans.Error{Message: "order_id has already been taken", StatusCode: http.StatusBadRequest}}
	gw, err := NewSnap("server-key", SnapEnvironment(true), transport, nil)
	require.NoError(t, err)
	_, err = gw.CreateTransaction(context.Background(), request())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been taken")

	req := request()
	req.GrossAmount = money.Must(33050, "USD")
	_, err = gw.CreateTransaction(context.Background(), req)
	assert.ErrorIs(t, err, ErrFractionalAmount)

	empty := &fakeMidtrans{response: `{}`}
	gw, err = NewSnap("server-key", SnapEnvironment(false), empty, nil)
	require.NoError(t, err)
	_, err = gw.CreateTransaction(context.Background(), request())
	assert.Error(t, err)

	_, err = NewSnap(" ", SnapEnvironment(false), nil, nil)
	assert.ErrorIs(t, err, ErrServerKeyRequired)
}

func TestWholeUnits(t *testing.T) {
	n, err := wholeUnits(money.Must(15000000, "IDR"))
	require.NoError(t, err)
	assert.Equal(t, int64(150000), n)

	n, err = wholeUnits(money.Must(1500, "JPY"))
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)
}

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func TestStripeCreateTransaction(t *testing.T) {
	sessions := &fakeSessions{}
	s := newStripe(sessions, StripeConfig{SuccessURL: "https://app/ok", CancelURL: "https://app/cart"})

	tx, err := s.CreateTransaction(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", tx.Token)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", tx.RedirectURL)

	p := sessions.params
	require.NotNil(t, p)
	assert.Equal(t, "ORDER-1", *p.ClientReferenceID)
	assert.Equal(t, "ORDER-1", p.Metadata["order_id"])
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "usd", *p.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(33000), *p.LineItems[0].PriceData.UnitAmount, "stripe takes minor units")
	assert.Equal(t, "idem-1", *p.IdempotencyKey)
}

func signStripe(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(eventType, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "api_version": "2020-08-27",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "client_reference_id": "ORDER-1",
    "amount_total": 33000,
    "currency": "usd",
    "payment_status": %q,
    "payment_intent": "pi_1"
  }}
}`, eventType, paymentStatus))
}

func TestStripeDecoder(t *testing.T) {
	d := StripeDecoder{WebhookSecret: "whsec_test"}
	now := time.Now()

	cases := []struct {
		eventType string
		paid      string
		want      string
	}{
		{"checkout.session.completed", "paid", "settlement"},
		{"checkout.session.completed", "unpaid", "pending"},
		{"checkout.session.async_payment_succeeded", "paid", "settlement"},
		{"checkout.session.async_payment_failed", "unpaid", "deny"},
		{"checkout.session.expired", "unpaid", "expire"},
	}
	for _, tc := range cases {
		t.Run(tc.eventType+"/"+tc.paid, func(t *testing.T) {
			payload := stripeEvent(tc.eventType, tc.paid)
			n, err := d.Decode(payload, signStripe(payload, "whsec_test", now))
			require.NoError(t, err)
			assert.Equal(t, tc.want, n.TransactionStatus)
			assert.Equal(t, "ORDER-1", n.OrderID)
			assert.Equal(t, "330.00", n.GrossAmount)
			assert.Equal(t, "USD", n.Currency)
			assert.Equal(t, "pi_1", n.TransactionID)
			assert.Equal(t, ProviderStripe, n.Provider)
		})
	}

	payload := stripeEvent("checkout.session.completed", "paid")
	_, err := d.Decode(payload, signStripe(payload, "whsec_other", now))
	assert.ErrorIs(t, err, domainpayments.ErrInvalidSignature)
	_, err = d.Decode(payload, signStripe(payload, "whsec_test", now.Add(-time.Hour)))
	assert.ErrorIs(t, err, domainpayments.ErrInvalidSignature)

	refund := stripeEvent("charge.refunded", "paid")
	_, err = d.Decode(refund, signStripe(refund, "whsec_test", now))
	assert.ErrorIs(t, err, domainpayments.ErrMalformedNotification)
}
