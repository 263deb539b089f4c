package policies

import (
	"context"
	"io"

	"villabook/internal/domain/payments"
	"villabook/internal/domain/shared/money"
)

type Customer struct {
	ID    string
	Email string
	Name  string
}

type LineItem struct {
	ID       string
	Name     string
	Price    money.Money
	Quantity int
}

type TransactionRequest struct {
	OrderID        string
	GrossAmount    money.Money
	Customer       Customer
	Items          []LineItem
	IdempotencyKey string
}

type Transaction struct {
	Token       string
	RedirectURL string
}

// PaymentGateway creates hosted payment transactions.
type PaymentGateway interface {
	Provider() string
	CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error)
}

// NotificationDecoder authenticates a raw gateway callback and normalizes it.
// Authentication failures wrap payments.ErrInvalidSignature.
type NotificationDecoder interface {
	Decode(payload []byte, signature string) (payments.Notification, error)
}

// PayloadArchive keeps raw inbound payloads for audits.
type PayloadArchive interface {
	Archive(ctx context.Context, key string, body io.Reader, contentType string) error
}
