package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"villabook/internal/app/policies"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/shared/money"
)

// Sandbox accepts every transaction without calling out. Its notifications are
// signed like Snap's, so the same decoder verifies them. Without a ReturnURL the
// transaction carries no redirect and callers complete payment via sandbox-notify.
type Sandbox struct {
	ServerKey string
	ReturnURL string
}

func (s Sandbox) Provider() string { return ProviderSandbox }

func (s Sandbox) CreateTransaction(ctx context.Context, req policies.TransactionRequest) (policies.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return policies.Transaction{}, err
	}
	tx := policies.Transaction{Token: "sandbox-" + req.OrderID}
	if s.ReturnURL != "" {
		tx.RedirectURL = fmt.Sprintf("%s?order_id=%s", s.ReturnURL, url.QueryEscape(req.OrderID))
	}
	return tx, nil
}

// Notification builds a signed callback body for an order, as the gateway would send it.
// The gross amount is written in major units.
func (s Sandbox) Notification(orderID, transactionStatus, fraudStatus string, grossAmount money.Money) ([]byte, error) {
	statusCode := "200"
	switch transactionStatus {
	case "pending":
		statusCode = "201"
	case "deny", "cancel", "expire":
		statusCode = "202"
	}
	gross := grossAmount.Major()
	n := domainpayments.Notification{
		OrderID:           orderID,
		StatusCode:        statusCode,
		GrossAmount:       gross,
		Currency:          grossAmount.Currency,
		SignatureKey:      Signature(orderID, statusCode, gross, s.ServerKey),
		TransactionStatus: transactionStatus,
		TransactionID:     "sandbox-" + orderID,
		FraudStatus:       fraudStatus,
		PaymentType:       "sandbox",
	}
	return json.Marshal(n)
}

var _ policies.PaymentGateway = Sandbox{}
