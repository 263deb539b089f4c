package cart

import (
	"context"
	"log/slog"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/uow"
	domaincart "villabook/internal/domain/cart"
)

const updateItemKey = "cart.update_item"

// UpdateItemCommand edits dates and/or guests of an item. Nil fields keep their value.
type UpdateItemCommand struct {
	UserID string  `validate:"required"`
	ItemID string  `validate:"required"`
	Start  *string `validate:"omitempty,datetime=2006-01-02"`
	End    *string `validate:"omitempty,datetime=2006-01-02"`
	Guests *int    `validate:"omitempty,gte=1"`
	Now    time.Time
}

func (c UpdateItemCommand) Key() string     { return updateItemKey }
func (c UpdateItemCommand) ActorID() string { return c.UserID }

type UpdateItemHandler struct {
	UoWFactory uow.UoWFactory
	Currency   string
	Logger     *slog.Logger
}

func (h *UpdateItemHandler) Handle(ctx context.Context, cmd UpdateItemCommand) (dto.CartItem, error) {
	patch, err := parsePatch(cmd)
	if err != nil {
		return dto.CartItem{}, err
	}
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.CartItem{}, err
	}
	item, err := h.update(execCtx, unit, cmd, patch)
	if err = done(err); err != nil {
		return dto.CartItem{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("cart item updated", "user_id", cmd.UserID, "item_id", item.ID, "range", item.Range.String(), "guests", item.Guests)
	}
	return dto.MapCartItem(item), nil
}

func (h *UpdateItemHandler) update(ctx context.Context, unit uow.UnitOfWork, cmd UpdateItemCommand, patch domaincart.Patch) (*domaincart.Item, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	item, err := unit.Cart().ByID(ctx, cmd.UserID, domaincart.ItemID(cmd.ItemID))
	if err != nil {
		return nil, Classify(err)
	}
	draft, err := item.Merge(patch)
	if err != nil {
		return nil, Classify(err)
	}
	property, err := unit.Properties().ByID(ctx, item.PropertyID)
	if err != nil {
		return nil, Classify(err)
	}
	if err := ensureBookable(ctx, unit.Bookings(), property, draft, h.Currency, now); err != nil {
		return nil, err
	}
	item.Apply(draft, now)
	if err := unit.Cart().Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func parsePatch(cmd UpdateItemCommand) (domaincart.Patch, error) {
	var patch domaincart.Patch
	for _, f := range []struct {
		raw *string
		dst **time.Time
	}{{cmd.Start, &patch.Start}, {cmd.End, &patch.End}} {
		if f.raw == nil {
			continue
		}
		t, err := time.Parse(time.DateOnly, *f.raw)
		if err != nil {
			return domaincart.Patch{}, apperr.Validation("invalid_dates", err)
		}
		*f.dst = &t
	}
	patch.Guests = cmd.Guests
	return patch, nil
}

var _ commands.Handler[UpdateItemCommand, dto.CartItem] = (*UpdateItemHandler)(nil)
