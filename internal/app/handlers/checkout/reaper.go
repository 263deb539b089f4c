package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domainpayments "villabook/internal/domain/payments"
)

const DefaultCheckoutTTL = 24 * time.Hour

// Reaper cancels pending bookings of checkouts nobody paid for within TTL.
type Reaper struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	TTL        time.Duration
	Logger     *slog.Logger
}

// Sweep processes every stale order in its own unit so one failure does not block the rest.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) (dto.SweepResult, error) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultCheckoutTTL
	}
	cutoff := now.Add(-ttl)

	orders, err := r.staleOrders(ctx, cutoff)
	if err != nil {
		return dto.SweepResult{}, err
	}
	result := dto.SweepResult{Examined: len(orders)}
	var errs []error
	for _, orderID := range orders {
		changed, err := r.reap(ctx, orderID, cutoff, now)
		if err != nil {
			errs = append(errs, err)
			if r.Logger != nil {
				r.Logger.Error("reap checkout failed", "order_id", orderID, "err", err)
			}
			continue
		}
		if changed {
			result.Changed++
			result.Orders = append(result.Orders, orderID)
		}
	}
	if r.Outbox != nil && result.Changed > 0 {
		if err := r.Outbox.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Logger != nil && result.Changed > 0 {
		r.Logger.Info("abandoned checkouts reaped", "examined", result.Examined, "changed", result.Changed)
	}
	return result, errors.Join(errs...)
}

func (r *Reaper) staleOrders(ctx context.Context, cutoff time.Time) ([]string, error) {
	seen := make(map[string]struct{})
	err := uow.Run(ctx, r.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		bookings, err := unit.Bookings().ListCreatedBefore(ctx, domainbooking.StatusPending, cutoff)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			seen[b.OrderID] = struct{}{}
		}
		intents, err := unit.Payments().ListByState(ctx, domainpayments.StateAwaitingPayment, cutoff)
		if err != nil {
			return err
		}
		for _, in := range intents {
			seen[in.OrderID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	orders := make([]string, 0, len(seen))
	for id := range seen {
		orders = append(orders, id)
	}
	sort.Strings(orders)
	return orders, nil
}

func (r *Reaper) reap(ctx context.Context, orderID string, cutoff, now time.Time) (bool, error) {
	changed := false
	err := uow.Run(ctx, r.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		intent, err := unit.Payments().ByOrderID(ctx, orderID)
		switch {
		case errors.Is(err, domainpayments.ErrNotFound):
			intent = nil
		case err != nil:
			return err
		case intent.State != domainpayments.StateAwaitingPayment:
			return nil
		}
		bookings, err := unit.Bookings().ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		var aggregates []outbox.Recorder
		for _, b := range bookings {
			if b.Status != domainbooking.StatusPending || !b.CreatedAt.Before(cutoff) {
				continue
			}
			if err := b.Cancel(ReasonCheckoutAbandoned, now); err != nil {
				return err
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			aggregates = append(aggregates, b)
		}
		if intent != nil {
			if err := intent.Abandon(now); err != nil {
				return err
			}
			if err := unit.Payments().Save(ctx, intent); err != nil {
				return err
			}
			aggregates = append(aggregates, intent)
		}
		changed = len(aggregates) > 0
		return outbox.Drain(ctx, r.Outbox, r.Encoder, aggregates...)
	})
	return changed, err
}
