package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
)

// StayCompleter moves confirmed bookings whose last night is over to completed.
// It is driven from outside (the complete-stays command) and keeps no schedule.
type StayCompleter struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (c *StayCompleter) CompleteElapsed(ctx context.Context, now time.Time) (dto.SweepResult, error) {
	var ids []domainbooking.BookingID
	err := uow.Run(ctx, c.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		bookings, err := unit.Bookings().ListEndedBy(ctx, domainbooking.StatusConfirmed, now)
		for _, b := range bookings {
			ids = append(ids, b.ID)
		}
		return err
	})
	if err != nil {
		return dto.SweepResult{}, err
	}

	result := dto.SweepResult{Examined: len(ids)}
	var errs []error
	for _, id := range ids {
		err := uow.Run(ctx, c.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
			b, err := unit.Bookings().ByID(ctx, id)
			if err != nil {
				return err
			}
			if err := b.Complete(now); err != nil {
				return err
			}
			if err := unit.Bookings().Save(ctx, b); err != nil {
				return err
			}
			return outbox.Drain(ctx, c.Outbox, c.Encoder, b)
		})
		switch {
		case err == nil:
			result.Changed++
		case errors.Is(err, domainbooking.ErrInvalidState), errors.Is(err, domainbooking.ErrStayNotElapsed):
		default:
			errs = append(errs, err)
			if c.Logger != nil {
				c.Logger.Error("complete stay failed", "booking_id", id, "err", err)
			}
		}
	}
	if c.Outbox != nil && result.Changed > 0 {
		if err := c.Outbox.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Logger != nil {
		c.Logger.Info("elapsed stays completed", "examined", result.Examined, "completed", result.Changed)
	}
	return result, errors.Join(errs...)
}
