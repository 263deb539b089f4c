package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/uow"
	domaincart "villabook/internal/domain/cart"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
)

const addItemKey = "cart.add_item"

type AddItemCommand struct {
	UserID     string `validate:"required"`
	PropertyID string `validate:"required"`
	Start      string `validate:"required,datetime=2006-01-02"`
	End        string `validate:"required,datetime=2006-01-02"`
	Guests     int    `validate:"gte=1"`
	Now        time.Time
}

func (c AddItemCommand) Key() string     { return addItemKey }
func (c AddItemCommand) ActorID() string { return c.UserID }

type AddItemHandler struct {
	UoWFactory uow.UoWFactory
	Currency   string
	Logger     *slog.Logger
}

func (h *AddItemHandler) Handle(ctx context.Context, cmd AddItemCommand) (dto.CartItem, error) {
	dr, err := daterange.Parse(cmd.Start, cmd.End)
	if err != nil {
		return dto.CartItem{}, Classify(err)
	}
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.CartItem{}, err
	}
	item, err := h.add(execCtx, unit, cmd, dr)
	if err = done(err); err != nil {
		return dto.CartItem{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("cart item added", "user_id", cmd.UserID, "item_id", item.ID, "property_id", item.PropertyID, "range", item.Range.String())
	}
	return dto.MapCartItem(item), nil
}

func (h *AddItemHandler) add(ctx context.Context, unit uow.UnitOfWork, cmd AddItemCommand, dr daterange.DateRange) (*domaincart.Item, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	draft := domaincart.Draft{
		PropertyID: domainproperties.PropertyID(cmd.PropertyID),
		Range:      dr,
		Guests:     cmd.Guests,
	}
	property, err := unit.Properties().ByID(ctx, draft.PropertyID)
	if err != nil {
		return nil, Classify(err)
	}
	if err := ensureBookable(ctx, unit.Bookings(), property, draft, h.Currency, now); err != nil {
		return nil, err
	}
	item, err := domaincart.NewItem(domaincart.ItemID(uuid.NewString()), cmd.UserID, draft, now)
	if err != nil {
		return nil, Classify(err)
	}
	if err := unit.Cart().Save(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

var _ commands.Handler[AddItemCommand, dto.CartItem] = (*AddItemHandler)(nil)
