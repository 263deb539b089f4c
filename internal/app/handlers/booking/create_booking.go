package booking

import (
	"context"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/handlers/checkout"
	"villabook/internal/app/middleware"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

// CreateBookingCommand books a single stay directly, bypassing the cart.
type CreateBookingCommand struct {
	UserID          string `validate:"required"`
	PropertyID      string `validate:"required"`
	Start           string `validate:"required,datetime=2006-01-02"`
	End             string `validate:"required,datetime=2006-01-02"`
	Guests          int    `validate:"gte=1"`
	IdempotencyKeyV string `validate:"omitempty,max=128"`
	Now             time.Time
}

func (c CreateBookingCommand) Key() string        { return createBookingKey }
func (c CreateBookingCommand) ActorID() string    { return c.UserID }
func (c CreateBookingCommand) ManagesUnits() bool { return true }

func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return createBookingKey + ":" + c.UserID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.CheckoutResult{} }

type CreateBookingHandler struct {
	Orchestrator *checkout.Orchestrator
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.CheckoutResult, error) {
	dr, err := daterange.Parse(cmd.Start, cmd.End)
	if err != nil {
		return nil, apperr.Validation("invalid_dates", err)
	}
	return h.Orchestrator.Place(ctx, checkout.Order{
		UserID:         cmd.UserID,
		IdempotencyKey: cmd.IdempotencyKeyV,
		Lines: []checkout.Line{{
			PropertyID: domainproperties.PropertyID(cmd.PropertyID),
			Range:      dr,
			Guests:     cmd.Guests,
		}},
		Now: cmd.Now,
	})
}

var (
	_ commands.Handler[CreateBookingCommand, *dto.CheckoutResult] = (*CreateBookingHandler)(nil)
	_ middleware.IdempotentCommand                                = CreateBookingCommand{}
	_ middleware.SelfManagedCommand                               = CreateBookingCommand{}
)
