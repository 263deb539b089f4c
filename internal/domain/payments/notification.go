package payments

import "errors"

var (
	ErrInvalidSignature      = errors.New("payments: invalid notification signature")
	ErrMalformedNotification = errors.New("payments: malformed notification")
)

// Notification is an asynchronous payment status callback in gateway-neutral form.
// GrossAmount is always a major-unit decimal string such as "330.00".
type Notification struct {
	Provider          string `json:"-"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	Currency          string `json:"currency,omitempty"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	FraudStatus       string `json:"fraud_status,omitempty"`
	PaymentType       string `json:"payment_type"`
}
