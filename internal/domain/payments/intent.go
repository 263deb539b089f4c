package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"villabook/internal/domain/booking"
	"villabook/internal/domain/shared/events"
	"villabook/internal/domain/shared/money"
)

var (
	ErrNotFound          = errors.New("payments: intent not found")
	ErrUnknownStatus     = errors.New("payments: unknown gateway status")
	ErrInvalidIntent     = errors.New("payments: intent requires order id, user and bookings")
	ErrInvalidAmount     = errors.New("payments: amount must be positive")
	ErrInvalidTransition = errors.New("payments: invalid checkout state transition")
	ErrDuplicateOrder    = errors.New("payments: order id already exists")
	ErrProviderMismatch  = errors.New("payments: notification provider does not match the intent")
	ErrAmountMismatch    = errors.New("payments: notified amount does not match the intent")
	// ErrStaleIntent is returned by Save when the stored version moved since the intent was loaded.
	ErrStaleIntent = errors.New("payments: intent was modified concurrently")
)

type IntentID string

// Status mirrors the gateway transaction lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCapture    Status = "capture"
	StatusSettlement Status = "settlement"
	StatusDeny       Status = "deny"
	StatusCancel     Status = "cancel"
	StatusExpire     Status = "expire"
	StatusRefund     Status = "refund"
)

// Class groups gateway statuses by their effect on bookings.
type Class string

const (
	ClassPending Class = "pending"
	ClassSuccess Class = "success"
	ClassFailure Class = "failure"
	ClassRefund  Class = "refund"
)

func (s Status) Class() Class {
	switch s {
	case StatusCapture, StatusSettlement:
		return ClassSuccess
	case StatusDeny, StatusCancel, StatusExpire:
		return ClassFailure
	case StatusRefund:
		return ClassRefund
	default:
		return ClassPending
	}
}

// MapGatewayStatus converts a reported transaction status into the internal status.
// A capture is only a success when the fraud screening explicitly accepted it;
// a missing or unrecognised fraud status is treated as a denial.
func MapGatewayStatus(transactionStatus, fraudStatus string) (Status, error) {
	ts := strings.ToLower(strings.TrimSpace(transactionStatus))
	fs := strings.ToLower(strings.TrimSpace(fraudStatus))
	switch ts {
	case "capture":
		if fs == "accept" {
			return StatusCapture, nil
		}
		return StatusDeny, nil
	case "settlement":
		return StatusSettlement, nil
	case "pending", "deny", "cancel", "expire", "refund":
		return Status(ts), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, transactionStatus)
	}
}

// CheckoutState tracks saga progress of a checkout.
type CheckoutState string

const (
	StateAwaitingPayment CheckoutState = "awaiting_payment"
	StatePaid            CheckoutState = "paid"
	StateFailed          CheckoutState = "failed"
	StateAbandoned       CheckoutState = "abandoned"
)

// Intent tracks one gateway transaction covering every booking of a checkout.
type Intent struct {
	ID             IntentID
	OrderID        string
	UserID         string
	BookingIDs     []booking.BookingID
	Amount         money.Money
	Status         Status
	State          CheckoutState
	Provider       string
	Token          string
	RedirectURL    string
	IdempotencyKey string
	TransactionID  string
	PaymentType    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int64
	events.EventRecorder
}

type Repository interface {
	ByOrderID(ctx context.Context, orderID string) (*Intent, error)
	Save(ctx context.Context, intent *Intent) error
	ListByState(ctx context.Context, state CheckoutState, createdBefore time.Time) ([]*Intent, error)
}

type CreateParams struct {
	ID             IntentID
	OrderID        string
	UserID         string
	BookingIDs     []booking.BookingID
	Amount         money.Money
	Provider       string
	Token          string
	RedirectURL    string
	IdempotencyKey string
	CreatedAt      time.Time
}

// NewIntent records a created gateway transaction awaiting payment.
func NewIntent(params CreateParams) (*Intent, error) {
	if params.OrderID == "" || params.UserID == "" || len(params.BookingIDs) == 0 {
		return nil, ErrInvalidIntent
	}
	if params.Amount.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	now := params.CreatedAt.UTC()
	return &Intent{
		ID:             params.ID,
		OrderID:        params.OrderID,
		UserID:         params.UserID,
		BookingIDs:     append([]booking.BookingID(nil), params.BookingIDs...),
		Amount:         params.Amount,
		Status:         StatusPending,
		State:          StateAwaitingPayment,
		Provider:       params.Provider,
		Token:          params.Token,
		RedirectURL:    params.RedirectURL,
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Verify checks that a notification came through the gateway the intent was created
// with and charged exactly the intent amount.
func (i *Intent) Verify(n Notification) error {
	if !strings.EqualFold(n.Provider, i.Provider) {
		return fmt.Errorf("%w: got %q, intent uses %q", ErrProviderMismatch, n.Provider, i.Provider)
	}
	if n.Currency != "" && !strings.EqualFold(n.Currency, i.Amount.Currency) {
		return fmt.Errorf("%w: currency %s, expected %s", ErrAmountMismatch, strings.ToUpper(n.Currency), i.Amount.Currency)
	}
	gross, err := money.ParseMajor(n.GrossAmount, i.Amount.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}
	if gross.Amount != i.Amount.Amount {
		return fmt.Errorf("%w: got %s, expected %s", ErrAmountMismatch, gross, i.Amount)
	}
	return nil
}

// Transition is the outcome of applying a gateway status.
type Transition struct {
	From Class
	To   Class
}

// Changed reports whether the status class moved, which is what triggers booking side effects.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// ApplyStatus stores the gateway status unconditionally and advances the checkout state
// when the status class changes.
func (i *Intent) ApplyStatus(status Status, transactionID, paymentType string, now time.Time) Transition {
	tr := Transition{From: i.Status.Class(), To: status.Class()}
	i.Status = status
	if transactionID != "" {
		i.TransactionID = transactionID
	}
	if paymentType != "" {
		i.PaymentType = paymentType
	}
	i.UpdatedAt = now.UTC()
	if tr.Changed() {
		switch tr.To {
		case ClassSuccess:
			i.State = StatePaid
		case ClassFailure:
			if i.State != StateAbandoned {
				i.State = StateFailed
			}
		}
	}
	i.Record(StatusChanged{OrderID: i.OrderID, UserID: i.UserID, Status: status, State: i.State, At: i.UpdatedAt})
	return tr
}

// Abandon marks an unpaid checkout as given up.
func (i *Intent) Abandon(now time.Time) error {
	if i.State != StateAwaitingPayment {
		return ErrInvalidTransition
	}
	i.State = StateAbandoned
	i.UpdatedAt = now.UTC()
	i.Record(Abandoned{OrderID: i.OrderID, UserID: i.UserID, At: i.UpdatedAt})
	return nil
}

type StatusChanged struct {
	OrderID string        `json:"order_id"`
	UserID  string        `json:"user_id"`
	Status  Status        `json:"status"`
	State   CheckoutState `json:"state"`
	At      time.Time     `json:"at"`
}

func (e StatusChanged) EventName() string     { return "payment.status_changed" }
func (e StatusChanged) AggregateID() string   { return e.OrderID }
func (e StatusChanged) OccurredAt() time.Time { return e.At }

type Abandoned struct {
	OrderID string    `json:"order_id"`
	UserID  string    `json:"user_id"`
	At      time.Time `json:"at"`
}

func (e Abandoned) EventName() string     { return "payment.abandoned" }
func (e Abandoned) AggregateID() string   { return e.OrderID }
func (e Abandoned) OccurredAt() time.Time { return e.At }
