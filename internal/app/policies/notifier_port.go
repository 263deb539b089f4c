package policies

import (
	"context"

	"villabook/internal/domain/shared/money"
)

// Notice is the payload of a user-facing notification about a booking or payment.
type Notice struct {
	UserID        string      `json:"user_id"`
	BookingID     string      `json:"booking_id,omitempty"`
	OrderID       string      `json:"order_id,omitempty"`
	Amount        money.Money `json:"amount"`
	PropertyTitle string      `json:"property_title,omitempty"`
}

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	BookingConfirmed(ctx context.Context, n Notice) error
	PaymentSuccess(ctx context.Context, n Notice) error
	PaymentFailed(ctx context.Context, n Notice) error
}
