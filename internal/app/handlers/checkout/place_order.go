package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"villabook/internal/app/apperr"
	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/policies"
	"villabook/internal/app/uow"
	"villabook/internal/domain/availability"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

const (
	ReasonCheckoutFailed    = "checkout_failed"
	ReasonCheckoutAbandoned = "checkout_abandoned"
)

var (
	ErrNoLines     = errors.New("checkout: order has no lines")
	ErrUnavailable = errors.New("checkout: dates are no longer available")
)

// Line is one stay to be booked.
type Line struct {
	PropertyID domainproperties.PropertyID
	Range      daterange.DateRange
	Guests     int
}

// Order is a checkout attempt of one user.
type Order struct {
	UserID         string
	IdempotencyKey string
	Lines          []Line
	Now            time.Time
}

// Orchestrator runs the checkout saga: validate and price, insert pending bookings,
// open a gateway transaction, record the payment intent. When a step after the insert
// fails the bookings are cancelled again.
type Orchestrator struct {
	UoWFactory uow.UoWFactory
	Gateway    policies.PaymentGateway
	Users      policies.UserDirectory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Currency   string
	Logger     *slog.Logger
}

type placed struct {
	orderID  string
	bookings []*domainbooking.Booking
	titles   map[domainproperties.PropertyID]string
	total    money.Money
}

func (o *Orchestrator) Place(ctx context.Context, order Order) (*dto.CheckoutResult, error) {
	if len(order.Lines) == 0 {
		return nil, apperr.Conflict("cart_empty", ErrNoLines)
	}
	now := order.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	customer := o.customer(ctx, order.UserID)

	p, err := o.reserve(ctx, order, now)
	if err != nil {
		return nil, err
	}
	o.log().Info("checkout started", "order_id", p.orderID, "user_id", order.UserID, "bookings", len(p.bookings), "total", p.total.String())

	tx, err := o.Gateway.CreateTransaction(ctx, policies.TransactionRequest{
		OrderID:        p.orderID,
		GrossAmount:    p.total,
		Customer:       customer,
		Items:          lineItems(p),
		IdempotencyKey: p.orderID,
	})
	if err != nil {
		o.log().Error("gateway transaction failed", "order_id", p.orderID, "provider", o.Gateway.Provider(), "err", err)
		o.compensate(ctx, p, nil, now)
		return nil, apperr.Internal(fmt.Errorf("create transaction: %w", err))
	}

	intent, err := domainpayments.NewIntent(domainpayments.CreateParams{
		ID:             domainpayments.IntentID(uuid.NewString()),
		OrderID:        p.orderID,
		UserID:         order.UserID,
		BookingIDs:     bookingIDs(p.bookings),
		Amount:         p.total,
		Provider:       o.Gateway.Provider(),
		Token:          tx.Token,
		RedirectURL:    tx.RedirectURL,
		IdempotencyKey: order.IdempotencyKey,
		CreatedAt:      now,
	})
	if err == nil {
		err = uow.Run(ctx, o.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			return unit.Payments().Save(ctx, intent)
		})
	}
	if err != nil {
		o.log().Error("persist payment intent failed", "order_id", p.orderID, "err", err)
		o.compensate(ctx, p, intent, now)
		return nil, apperr.Internal(fmt.Errorf("persist intent: %w", err))
	}

	o.log().Info("checkout awaiting payment", "order_id", p.orderID, "provider", intent.Provider)
	ids := make([]string, 0, len(p.bookings))
	for _, b := range p.bookings {
		ids = append(ids, string(b.ID))
	}
	return &dto.CheckoutResult{
		OrderID:      p.orderID,
		PaymentToken: tx.Token,
		RedirectURL:  tx.RedirectURL,
		Provider:     intent.Provider,
		Amount:       dto.MapMoney(p.total),
		BookingIDs:   ids,
		State:        string(intent.State),
	}, nil
}

// reserve validates every line against fresh property data, prices it and inserts the
// pending bookings in one unit. Nothing is written when any line fails.
func (o *Orchestrator) reserve(ctx context.Context, order Order, now time.Time) (placed, error) {
	p := placed{
		orderID: "ORDER-" + ulid.Make().String(),
		titles:  make(map[domainproperties.PropertyID]string),
		total:   money.Zero(o.Currency),
	}
	err := uow.Run(ctx, o.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		checker := availability.Checker{Bookings: unit.Bookings()}
		for _, line := range order.Lines {
			property, err := unit.Properties().ByID(ctx, line.PropertyID)
			if err != nil {
				return classify(err)
			}
			draft := domaincart.Draft{PropertyID: line.PropertyID, Range: line.Range, Guests: line.Guests}
			if err := draft.Validate(property, now); err != nil {
				return classify(err)
			}
			res, err := checker.Check(ctx, line.PropertyID, line.Range)
			if err != nil {
				return err
			}
			if !res.Available {
				return apperr.Conflict("dates_unavailable", fmt.Errorf("%w: %s %s", ErrUnavailable, property.ID, line.Range))
			}
			quote := pricing.CalculateBookingPrice(property.NightlyRate, line.Range)
			if p.total, err = p.total.Add(quote.Total); err != nil {
				return apperr.Validation("currency_mismatch", err)
			}
			b, err := domainbooking.NewPending(domainbooking.CreateParams{
				ID:         domainbooking.BookingID(uuid.NewString()),
				PropertyID: property.ID,
				UserID:     order.UserID,
				Range:      line.Range,
				Guests:     line.Guests,
				Price:      quote,
				OrderID:    p.orderID,
				CreatedAt:  now,
			})
			if err != nil {
				return classify(err)
			}
			p.bookings = append(p.bookings, b)
			p.titles[property.ID] = property.Title
		}
		if err := unit.Bookings().Insert(ctx, p.bookings); err != nil {
			return classify(err)
		}
		aggregates := make([]outbox.Recorder, 0, len(p.bookings))
		for _, b := range p.bookings {
			aggregates = append(aggregates, b)
		}
		return outbox.Drain(ctx, o.Outbox, o.Encoder, aggregates...)
	})
	if err != nil {
		return placed{}, err
	}
	return p, nil
}

// compensate cancels the bookings of a failed checkout and abandons its intent.
// Failures are logged; the reaper picks up whatever is left pending.
func (o *Orchestrator) compensate(ctx context.Context, p placed, intent *domainpayments.Intent, now time.Time) {
	ctx = context.WithoutCancel(ctx)
	err := uow.Run(ctx, o.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var aggregates []outbox.Recorder
		for _, created := range p.bookings {
			b, err := unit.Bookings().ByID(ctx, created.ID)
			if err != nil {
				return err
			}
			if err := b.Cancel(ReasonCheckoutFailed, now); err != nil {
				continue
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			aggregates = append(aggregates, b)
		}
		if intent != nil {
			stored, err := unit.Payments().ByOrderID(ctx, intent.OrderID)
			switch {
			case errors.Is(err, domainpayments.ErrNotFound):
			case err != nil:
				return err
			default:
				if stored.Abandon(now) == nil {
					if err := unit.Payments().Save(ctx, stored); err != nil {
						return err
					}
					aggregates = append(aggregates, stored)
				}
			}
		}
		return outbox.Drain(ctx, o.Outbox, o.Encoder, aggregates...)
	})
	if err != nil {
		o.log().Error("checkout compensation failed", "order_id", p.orderID, "err", err)
		return
	}
	o.log().Warn("checkout compensated", "order_id", p.orderID, "bookings", len(p.bookings))
}

func (o *Orchestrator) customer(ctx context.Context, userID string) policies.Customer {
	if o.Users != nil {
		c, err := o.Users.Contact(ctx, userID)
		if err == nil {
			return c
		}
		o.log().Warn("customer lookup failed", "user_id", userID, "err", err)
	}
	return policies.Customer{ID: userID}
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func lineItems(p placed) []policies.LineItem {
	items := make([]policies.LineItem, 0, len(p.bookings))
	for _, b := range p.bookings {
		items = append(items, policies.LineItem{
			ID:       string(b.ID),
			Name:     fmt.Sprintf("%s, %d nights", p.titles[b.PropertyID], b.Price.Nights),
			Price:    b.Price.Total,
			Quantity: 1,
		})
	}
	return items
}

func bookingIDs(bookings []*domainbooking.Booking) []domainbooking.BookingID {
	ids := make([]domainbooking.BookingID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids
}

func classify(err error) error {
	switch {
	case errors.Is(err, domainbooking.ErrOverlap):
		return apperr.Conflict("dates_unavailable", err)
	case errors.Is(err, domainbooking.ErrStaleBooking), errors.Is(err, domainpayments.ErrStaleIntent):
		return apperr.Conflict("concurrent_update", err)
	case errors.Is(err, domainbooking.ErrInvalidGuests), errors.Is(err, domainbooking.ErrUserRequired):
		return apperr.Validation("invalid_booking", err)
	case errors.Is(err, domainproperties.ErrInactive):
		return apperr.Conflict("property_inactive", err)
	case errors.Is(err, domainproperties.ErrNotFound):
		return apperr.Conflict("property_unavailable", err)
	case errors.Is(err, domainproperties.ErrTooManyGuests):
		return apperr.Validation("too_many_guests", err)
	case errors.Is(err, domaincart.ErrStartInPast):
		return apperr.Validation("start_in_past", err)
	case errors.Is(err, domaincart.ErrInvalidGuests):
		return apperr.Validation("invalid_guests", err)
	case errors.Is(err, daterange.ErrInvalidRange):
		return apperr.Validation("invalid_dates", err)
	default:
		return err
	}
}
