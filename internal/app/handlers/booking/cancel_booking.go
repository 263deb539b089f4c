package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
)

const (
	cancelBookingKey = "booking.cancel"
	ReasonByGuest    = "cancelled_by_guest"
)

var ErrNotOwner = errors.New("booking: booking belongs to another user")

type CancelBookingCommand struct {
	UserID    string `validate:"required"`
	BookingID string `validate:"required"`
	Now       time.Time
}

func (c CancelBookingCommand) Key() string     { return cancelBookingKey }
func (c CancelBookingCommand) ActorID() string { return c.UserID }

type CancelBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (dto.BookingSummary, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.BookingSummary{}, err
	}
	summary, err := h.cancel(execCtx, unit, cmd)
	if err = done(err); err != nil {
		return dto.BookingSummary{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", cmd.BookingID, "user_id", cmd.UserID)
	}
	return summary, nil
}

func (h *CancelBookingHandler) cancel(ctx context.Context, unit uow.UnitOfWork, cmd CancelBookingCommand) (dto.BookingSummary, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return dto.BookingSummary{}, Classify(err)
	}
	if !b.OwnedBy(cmd.UserID) {
		return dto.BookingSummary{}, apperr.Authorization("not_booking_owner", ErrNotOwner)
	}
	if err := b.Cancel(ReasonByGuest, now); err != nil {
		return dto.BookingSummary{}, Classify(err)
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return dto.BookingSummary{}, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, b); err != nil {
		return dto.BookingSummary{}, err
	}
	return dto.MapBookingSummary(b, "", false), nil
}

// Classify maps booking errors onto the client taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainbooking.ErrBookingNotFound):
		return apperr.NotFound("booking_not_found", err)
	case errors.Is(err, domainbooking.ErrAlreadyCancelled):
		return apperr.Conflict("already_cancelled", err)
	case errors.Is(err, domainbooking.ErrInvalidState):
		return apperr.Conflict("invalid_booking_state", err)
	case errors.Is(err, domainbooking.ErrStayNotElapsed):
		return apperr.Conflict("stay_not_elapsed", err)
	case errors.Is(err, domainbooking.ErrStaleBooking):
		return apperr.Conflict("concurrent_update", err)
	default:
		return err
	}
}

var _ commands.Handler[CancelBookingCommand, dto.BookingSummary] = (*CancelBookingHandler)(nil)
