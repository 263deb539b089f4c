package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"villabook/internal/app/policies"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/shared/money"
)

const (
	ProviderStripe = "stripe"

	defaultTimeout = 10 * time.Second
)

var ErrStripeKeyRequired = errors.New("gateway: stripe secret key required")

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Stripe creates Stripe Checkout sessions. The order id travels as client reference
// and metadata so webhooks can be matched back.
type Stripe struct {
	sessions   stripeSessionAPI
	successURL string
	cancelURL  string
	logger     *slog.Logger
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewStripe(cfg StripeConfig) (*Stripe, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, ErrStripeKeyRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, &stripe.BackendConfig{HTTPClient: httpClient}),
	}
	sc := client.New(key, backends)
	return newStripe(sc.CheckoutSessions, cfg), nil
}

func newStripe(sessions stripeSessionAPI, cfg StripeConfig) *Stripe {
	return &Stripe{sessions: sessions, successURL: cfg.SuccessURL, cancelURL: cfg.CancelURL, logger: cfg.Logger}
}

func (s *Stripe) Provider() string { return ProviderStripe }

func (s *Stripe) CreateTransaction(ctx context.Context, req policies.TransactionRequest) (policies.Transaction, error) {
	currency := strings.ToLower(req.GrossAmount.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		Metadata:          map[string]string{"order_id": req.OrderID, "user_id": req.Customer.ID},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": req.OrderID},
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	for _, item := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(max(item.Quantity, 1))),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(item.Price.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	if len(params.LineItems) == 0 {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(req.GrossAmount.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.OrderID)},
			},
		})
	}
	session, err := s.sessions.New(params)
	if err != nil {
		return policies.Transaction{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("stripe session created", "order_id", req.OrderID, "session_id", session.ID)
	}
	return policies.Transaction{Token: session.ID, RedirectURL: session.URL}, nil
}

// StripeDecoder verifies the Stripe-Signature header and maps checkout session
// events onto the gateway-neutral notification.
type StripeDecoder struct {
	WebhookSecret string
}

func (d StripeDecoder) Decode(payload []byte, signature string) (domainpayments.Notification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, d.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domainpayments.Notification{Provider: ProviderStripe}, fmt.Errorf("%w: %v", domainpayments.ErrInvalidSignature, err)
	}
	if event.Data == nil {
		return domainpayments.Notification{Provider: ProviderStripe}, fmt.Errorf("%w: event without data", domainpayments.ErrMalformedNotification)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domainpayments.Notification{Provider: ProviderStripe}, fmt.Errorf("%w: %v", domainpayments.ErrMalformedNotification, err)
	}
	// Stripe reports minor units; notifications carry major units.
	total := money.Money{Amount: session.AmountTotal, Currency: strings.ToUpper(string(session.Currency))}
	n := domainpayments.Notification{
		Provider:      ProviderStripe,
		OrderID:       session.ClientReferenceID,
		StatusCode:    "200",
		GrossAmount:   total.Major(),
		Currency:      total.Currency,
		TransactionID: session.ID,
		PaymentType:   "card",
	}
	if n.OrderID == "" {
		n.OrderID = session.Metadata["order_id"]
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		n.TransactionID = session.PaymentIntent.ID
	}
	switch event.Type {
	case "checkout.session.completed":
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			n.TransactionStatus = "pending"
		} else {
			n.TransactionStatus = "settlement"
		}
	case "checkout.session.async_payment_succeeded":
		n.TransactionStatus = "settlement"
	case "checkout.session.async_payment_failed":
		n.TransactionStatus = "deny"
	case "checkout.session.expired":
		n.TransactionStatus = "expire"
	default:
		return n, fmt.Errorf("%w: unsupported event type %s", domainpayments.ErrMalformedNotification, event.Type)
	}
	if n.OrderID == "" {
		return n, fmt.Errorf("%w: session without order reference", domainpayments.ErrMalformedNotification)
	}
	return n, nil
}

var (
	_ policies.PaymentGateway      = (*Stripe)(nil)
	_ policies.NotificationDecoder = StripeDecoder{}
)
