package gateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"villabook/internal/app/policies"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/shared/money"
)

const (
	ProviderSnap    = "snap"
	ProviderSandbox = "sandbox"
)

var (
	ErrServerKeyRequired = errors.New("gateway: snap server key required")
	ErrFractionalAmount  = errors.New("gateway: snap amounts must be whole currency units")
)

// Snap creates hosted payment pages through the Midtrans Snap API. Snap takes
// whole currency units, so minor-unit amounts are converted before sending.
type Snap struct {
	client snap.Client
	Logger *slog.Logger
}

// NewSnap builds a client for env. A nil httpClient uses the SDK default.
func NewSnap(serverKey string, env midtrans.EnvironmentType, httpClient midtrans.HttpClient, logger *slog.Logger) (*Snap, error) {
	if strings.TrimSpace(serverKey) == "" {
		return nil, ErrServerKeyRequired
	}
	s := &Snap{Logger: logger}
	s.client.New(serverKey, env)
	if httpClient != nil {
		s.client.HttpClient = httpClient
	}
	return s, nil
}

// SnapEnvironment picks the Midtrans environment for a deployment.
func SnapEnvironment(production bool) midtrans.EnvironmentType {
	if production {
		return midtrans.Production
	}
	return midtrans.Sandbox
}

func (s *Snap) Provider() string { return ProviderSnap }

func (s *Snap) CreateTransaction(ctx context.Context, req policies.TransactionRequest) (policies.Transaction, error) {
	gross, err := wholeUnits(req.GrossAmount)
	if err != nil {
		return policies.Transaction{}, err
	}
	body := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{OrderID: req.OrderID, GrossAmt: gross},
	}
	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, item := range req.Items {
		price, err := wholeUnits(item.Price)
		if err != nil {
			return policies.Transaction{}, err
		}
		items = append(items, midtrans.ItemDetails{
			ID:    item.ID,
			Name:  truncate(item.Name, 50),
			Price: price,
			Qty:   int32(max(item.Quantity, 1)),
		})
	}
	if len(items) > 0 {
		body.Items = &items
	}
	if req.Customer.Email != "" || req.Customer.Name != "" {
		body.CustomerDetail = &midtrans.CustomerDetails{FName: req.Customer.Name, Email: req.Customer.Email}
	}

	// Options are per call: they carry the request context and idempotency key.
	client := s.client
	client.Options = &midtrans.ConfigOptions{}
	client.Options.SetContext(ctx)
	if req.IdempotencyKey != "" {
		client.Options.SetPaymentIdempotencyKey(req.IdempotencyKey)
	}
	resp, merr := client.CreateTransaction(body)
	if merr != nil {
		return policies.Transaction{}, fmt.Errorf("snap: create transaction: %w", merr)
	}
	if resp == nil || resp.Token == "" {
		return policies.Transaction{}, errors.New("snap: response without token")
	}
	if s.Logger != nil {
		s.Logger.Info("snap transaction created", "order_id", req.OrderID, "amount", req.GrossAmount.String())
	}
	return policies.Transaction{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// wholeUnits converts minor units to the whole units Snap expects.
func wholeUnits(m money.Money) (int64, error) {
	unit := int64(1)
	for i := 0; i < money.Exponent(m.Currency); i++ {
		unit *= 10
	}
	if m.Amount%unit != 0 {
		return 0, fmt.Errorf("%w: %s", ErrFractionalAmount, m)
	}
	return m.Amount / unit, nil
}

// SnapDecoder verifies sha512(order_id + status_code + gross_amount + server_key)
// against signature_key. The signature travels in the body, so the header argument
// of Decode is ignored.
type SnapDecoder struct {
	Provider  string
	ServerKey string
}

func (d SnapDecoder) Decode(payload []byte, _ string) (domainpayments.Notification, error) {
	var n domainpayments.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return domainpayments.Notification{}, fmt.Errorf("%w: %v", domainpayments.ErrMalformedNotification, err)
	}
	n.Provider = d.Provider
	if n.Provider == "" {
		n.Provider = ProviderSnap
	}
	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" || n.TransactionStatus == "" {
		return n, fmt.Errorf("%w: missing required fields", domainpayments.ErrMalformedNotification)
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, d.ServerKey)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) != 1 {
		return n, domainpayments.ErrInvalidSignature
	}
	return n, nil
}

// Signature computes the hex sha512 signature of a Snap notification.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	_ policies.PaymentGateway      = (*Snap)(nil)
	_ policies.NotificationDecoder = SnapDecoder{}
)
