package outbox

import (
	"context"
	"encoding/json"
	"time"

	"villabook/internal/app/policies"
)

const (
	NotificationBookingConfirmed = "notification.booking_confirmed"
	NotificationPaymentSuccess   = "notification.payment_success"
	NotificationPaymentFailed    = "notification.payment_failed"
)

// Notifier turns notification calls into outbox records so delivery happens
// after the surrounding unit commits.
type Notifier struct {
	Box Outbox
	Now func() time.Time
}

func (n Notifier) BookingConfirmed(ctx context.Context, notice policies.Notice) error {
	return n.add(ctx, NotificationBookingConfirmed, notice.BookingID, notice)
}

func (n Notifier) PaymentSuccess(ctx context.Context, notice policies.Notice) error {
	return n.add(ctx, NotificationPaymentSuccess, notice.OrderID, notice)
}

func (n Notifier) PaymentFailed(ctx context.Context, notice policies.Notice) error {
	return n.add(ctx, NotificationPaymentFailed, notice.OrderID, notice)
}

func (n Notifier) add(ctx context.Context, name, aggregate string, notice policies.Notice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	if aggregate == "" {
		aggregate = notice.UserID
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return n.Box.Add(ctx, EventRecord{
		ID:         NewEventID(),
		Name:       name,
		Payload:    payload,
		OccurredAt: now().UTC(),
		Aggregate:  aggregate,
		Headers:    map[string]string{"user_id": notice.UserID},
	})
}

var _ policies.Notifier = Notifier{}
