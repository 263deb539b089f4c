package checkout

import (
	"context"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/middleware"
	"villabook/internal/app/uow"
	domaincart "villabook/internal/domain/cart"
)

const checkoutKey = "checkout.place"

// CheckoutCommand converts the caller's cart into pending bookings and one payment intent.
type CheckoutCommand struct {
	UserID          string `validate:"required"`
	IdempotencyKeyV string `validate:"omitempty,max=128"`
	Now             time.Time
}

func (c CheckoutCommand) Key() string        { return checkoutKey }
func (c CheckoutCommand) ActorID() string    { return c.UserID }
func (c CheckoutCommand) ManagesUnits() bool { return true }

// IdempotencyKey is scoped to the user so two users cannot collide on a client key.
func (c CheckoutCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return checkoutKey + ":" + c.UserID + ":" + c.IdempotencyKeyV
}

func (c CheckoutCommand) ResultPrototype() any { return &dto.CheckoutResult{} }

type CheckoutHandler struct {
	UoWFactory   uow.UoWFactory
	Orchestrator *Orchestrator
}

func (h *CheckoutHandler) Handle(ctx context.Context, cmd CheckoutCommand) (*dto.CheckoutResult, error) {
	var items []*domaincart.Item
	err := uow.Run(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		items, err = unit.Cart().ListByUser(ctx, cmd.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Conflict("cart_empty", domaincart.ErrEmpty)
	}
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{PropertyID: item.PropertyID, Range: item.Range, Guests: item.Guests})
	}
	return h.Orchestrator.Place(ctx, Order{
		UserID:         cmd.UserID,
		IdempotencyKey: cmd.IdempotencyKeyV,
		Lines:          lines,
		Now:            cmd.Now,
	})
}

var (
	_ commands.Handler[CheckoutCommand, *dto.CheckoutResult] = (*CheckoutHandler)(nil)
	_ middleware.IdempotentCommand                           = CheckoutCommand{}
	_ middleware.SelfManagedCommand                          = CheckoutCommand{}
)
