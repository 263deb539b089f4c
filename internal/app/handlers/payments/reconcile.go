package payments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/middleware"
	"villabook/internal/app/outbox"
	"villabook/internal/app/policies"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
)

const reconcileKey = "payments.reconcile"

var ErrUnknownProvider = errors.New("payments: no decoder for provider")

// ReconcileCommand carries a raw gateway callback.
type ReconcileCommand struct {
	Provider    string `validate:"required"`
	Payload     []byte `validate:"required"`
	Signature   string
	ContentType string
	ReceivedAt  time.Time
}

func (c ReconcileCommand) Key() string        { return reconcileKey }
func (c ReconcileCommand) ManagesUnits() bool { return true }

// ReconcileHandler applies gateway payment outcomes to intents and their bookings.
// Booking transitions and notifications happen only when the status class changes,
// so replays of the same callback are harmless.
type ReconcileHandler struct {
	UoWFactory uow.UoWFactory
	Decoders   map[string]policies.NotificationDecoder
	Notifier   policies.Notifier
	Archive    policies.PayloadArchive
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

type applied struct {
	intent     *domainpayments.Intent
	transition domainpayments.Transition
	bookings   []*domainbooking.Booking
	titles     map[domainproperties.PropertyID]string
}

func (h *ReconcileHandler) Handle(ctx context.Context, cmd ReconcileCommand) (dto.ReconcileResult, error) {
	now := cmd.ReceivedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	decoder, ok := h.Decoders[cmd.Provider]
	if !ok {
		return dto.ReconcileResult{}, apperr.NotFound("unknown_provider", fmt.Errorf("%w: %s", ErrUnknownProvider, cmd.Provider))
	}
	n, err := decoder.Decode(cmd.Payload, cmd.Signature)
	h.archive(ctx, cmd, n.OrderID, now)
	if err != nil {
		if errors.Is(err, domainpayments.ErrInvalidSignature) {
			h.log().Warn("payment notification rejected", "provider", cmd.Provider, "order_id", n.OrderID)
			return dto.ReconcileResult{}, apperr.Authentication("invalid_signature", "notification signature mismatch")
		}
		return dto.ReconcileResult{}, apperr.Validation("invalid_notification", err)
	}
	status, err := domainpayments.MapGatewayStatus(n.TransactionStatus, n.FraudStatus)
	if err != nil {
		return dto.ReconcileResult{}, apperr.Validation("unknown_status", err)
	}

	var a applied
	err = uow.Run(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		a, err = h.apply(ctx, unit, n, status, now)
		return err
	})
	if err != nil {
		return dto.ReconcileResult{}, classify(err)
	}

	h.log().Info("payment status applied",
		"order_id", n.OrderID, "status", status, "from", a.transition.From, "to", a.transition.To, "state", a.intent.State)

	result := dto.ReconcileResult{
		OrderID: n.OrderID,
		Status:  string(status),
		State:   string(a.intent.State),
		Applied: a.transition.Changed(),
	}
	for _, id := range a.intent.BookingIDs {
		result.BookingIDs = append(result.BookingIDs, string(id))
	}
	if a.transition.Changed() {
		result.CartItemsFreed = h.sideEffects(ctx, a)
		result.NeedsRefund = a.transition.To == domainpayments.ClassSuccess && len(a.bookings) == 0
	}
	return result, nil
}

func (h *ReconcileHandler) apply(ctx context.Context, unit uow.UnitOfWork, n domainpayments.Notification, status domainpayments.Status, now time.Time) (applied, error) {
	intent, err := unit.Payments().ByOrderID(ctx, n.OrderID)
	if err != nil {
		return applied{}, err
	}
	if err := intent.Verify(n); err != nil {
		h.log().Warn("payment notification does not match intent", "order_id", intent.OrderID, "provider", n.Provider, "gross_amount", n.GrossAmount, "err", err)
		return applied{}, err
	}
	a := applied{
		intent:     intent,
		transition: intent.ApplyStatus(status, n.TransactionID, n.PaymentType, now),
		titles:     make(map[domainproperties.PropertyID]string),
	}
	aggregates := []outbox.Recorder{intent}
	if a.transition.Changed() && (a.transition.To == domainpayments.ClassSuccess || a.transition.To == domainpayments.ClassFailure) {
		for _, id := range intent.BookingIDs {
			b, err := unit.Bookings().ByID(ctx, id)
			if err != nil {
				return applied{}, err
			}
			var terr error
			if a.transition.To == domainpayments.ClassSuccess {
				terr = b.Confirm(now)
			} else {
				terr = b.Cancel("payment_"+string(status), now)
			}
			if terr != nil {
				h.log().Warn("booking transition skipped", "order_id", intent.OrderID, "booking_id", b.ID, "status", b.Status, "err", terr)
				continue
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return applied{}, err
			}
			aggregates = append(aggregates, b)
			a.bookings = append(a.bookings, b)
			if _, ok := a.titles[b.PropertyID]; !ok {
				if p, err := unit.Properties().ByID(ctx, b.PropertyID); err == nil {
					a.titles[b.PropertyID] = p.Title
				}
			}
		}
	}
	if err := unit.Payments().Save(ctx, intent); err != nil {
		return applied{}, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, aggregates...); err != nil {
		return applied{}, err
	}
	return a, nil
}

// sideEffects sends notifications and, on success, empties the cart. Failures are logged only.
// A success that confirmed no booking (the checkout was abandoned first) leaves the cart
// alone and sends no success notice; the charge has to be refunded by an operator.
func (h *ReconcileHandler) sideEffects(ctx context.Context, a applied) int {
	intent := a.intent
	if a.transition.To == domainpayments.ClassSuccess && len(a.bookings) == 0 {
		h.log().Error("payment captured but no booking could be confirmed",
			"order_id", intent.OrderID, "user_id", intent.UserID, "state", intent.State, "amount", intent.Amount.String())
		return 0
	}
	removed := 0
	err := uow.Run(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		notifier := h.Notifier
		if notifier == nil {
			notifier = discardNotifier{}
		}
		var errs []error
		switch a.transition.To {
		case domainpayments.ClassSuccess:
			for _, b := range a.bookings {
				errs = append(errs, notifier.BookingConfirmed(ctx, policies.Notice{
					UserID:        b.UserID,
					BookingID:     string(b.ID),
					OrderID:       intent.OrderID,
					Amount:        b.Price.Total,
					PropertyTitle: a.titles[b.PropertyID],
				}))
			}
			errs = append(errs, notifier.PaymentSuccess(ctx, h.notice(a)))
			n, err := unit.Cart().Clear(ctx, intent.UserID)
			if err != nil {
				errs = append(errs, fmt.Errorf("clear cart: %w", err))
			}
			removed = n
		case domainpayments.ClassFailure:
			errs = append(errs, notifier.PaymentFailed(ctx, h.notice(a)))
		}
		if err := errors.Join(errs...); err != nil {
			h.log().Error("payment side effects failed", "order_id", intent.OrderID, "err", err)
		}
		return nil
	})
	if err != nil {
		h.log().Error("payment side effects failed", "order_id", intent.OrderID, "err", err)
	}
	if removed > 0 {
		h.log().Info("cart cleared after payment", "order_id", intent.OrderID, "user_id", intent.UserID, "removed", removed)
	}
	return removed
}

type discardNotifier struct{}

func (discardNotifier) BookingConfirmed(context.Context, policies.Notice) error { return nil }
func (discardNotifier) PaymentSuccess(context.Context, policies.Notice) error   { return nil }
func (discardNotifier) PaymentFailed(context.Context, policies.Notice) error    { return nil }

func (h *ReconcileHandler) notice(a applied) policies.Notice {
	n := policies.Notice{UserID: a.intent.UserID, OrderID: a.intent.OrderID, Amount: a.intent.Amount}
	if len(a.bookings) == 1 {
		n.BookingID = string(a.bookings[0].ID)
		n.PropertyTitle = a.titles[a.bookings[0].PropertyID]
	}
	return n
}

func (h *ReconcileHandler) archive(ctx context.Context, cmd ReconcileCommand, orderID string, at time.Time) {
	if h.Archive == nil {
		return
	}
	if orderID == "" {
		orderID = "unknown"
	}
	contentType := cmd.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	key := fmt.Sprintf("webhooks/%s/%s/%d.json", cmd.Provider, orderID, at.UnixNano())
	if err := h.Archive.Archive(ctx, key, bytes.NewReader(cmd.Payload), contentType); err != nil {
		h.log().Warn("webhook archive failed", "key", key, "err", err)
	}
}

func (h *ReconcileHandler) log() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func classify(err error) error {
	switch {
	case errors.Is(err, domainpayments.ErrNotFound):
		return apperr.NotFound("order_not_found", err)
	case errors.Is(err, domainpayments.ErrProviderMismatch):
		return apperr.Authentication("provider_mismatch", "notification provider does not match the order")
	case errors.Is(err, domainpayments.ErrAmountMismatch):
		return apperr.Conflict("amount_mismatch", err)
	case errors.Is(err, domainpayments.ErrStaleIntent), errors.Is(err, domainbooking.ErrStaleBooking):
		return apperr.Conflict("concurrent_update", err)
	default:
		return err
	}
}

var (
	_ commands.Handler[ReconcileCommand, dto.ReconcileResult] = (*ReconcileHandler)(nil)
	_ middleware.SelfManagedCommand                           = ReconcileCommand{}
)
