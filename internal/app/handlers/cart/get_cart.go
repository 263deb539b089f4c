package cart

import (
	"context"
	"log/slog"

	"villabook/internal/app/dto"
	"villabook/internal/app/policies"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
	domaincart "villabook/internal/domain/cart"
)

const getCartKey = "cart.get"

type GetCartQuery struct {
	UserID string `validate:"required"`
}

func (q GetCartQuery) Key() string { return getCartKey }

// GetCartHandler prices every item and folds the lines into a summary.
type GetCartHandler struct {
	UoWFactory uow.UoWFactory
	// Properties serves the snapshots shown next to each line. It may be cached.
	Properties policies.PropertyReader
	Currency   string
	Logger     *slog.Logger
}

func (h *GetCartHandler) Handle(ctx context.Context, q GetCartQuery) (dto.Cart, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Cart{}, err
	}
	view, err := h.build(execCtx, unit, q.UserID)
	return view, done(err)
}

func (h *GetCartHandler) build(ctx context.Context, unit uow.UnitOfWork, userID string) (dto.Cart, error) {
	items, err := unit.Cart().ListByUser(ctx, userID)
	if err != nil {
		return dto.Cart{}, err
	}
	lines, err := Price(ctx, h.Properties, unit.Bookings(), items)
	if err != nil {
		return dto.Cart{}, err
	}
	summary := domaincart.Summarize(h.Currency, lines)
	if h.Logger != nil {
		h.Logger.Debug("cart priced", "user_id", userID, "items", summary.ItemCount, "all_available", summary.AllAvailable)
	}
	return dto.MapCart(lines, summary), nil
}

var _ queries.Handler[GetCartQuery, dto.Cart] = (*GetCartHandler)(nil)
