package cart

import (
	"context"
	"log/slog"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/uow"
	domaincart "villabook/internal/domain/cart"
)

const (
	removeItemKey = "cart.remove_item"
	clearCartKey  = "cart.clear"
)

type RemoveItemCommand struct {
	UserID string `validate:"required"`
	ItemID string `validate:"required"`
}

func (c RemoveItemCommand) Key() string     { return removeItemKey }
func (c RemoveItemCommand) ActorID() string { return c.UserID }

type RemoveItemHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *RemoveItemHandler) Handle(ctx context.Context, cmd RemoveItemCommand) (dto.CartCleared, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.CartCleared{}, err
	}
	err = unit.Cart().Delete(execCtx, cmd.UserID, domaincart.ItemID(cmd.ItemID))
	if err = done(Classify(err)); err != nil {
		return dto.CartCleared{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("cart item removed", "user_id", cmd.UserID, "item_id", cmd.ItemID)
	}
	return dto.CartCleared{Removed: 1}, nil
}

type ClearCartCommand struct {
	UserID string `validate:"required"`
}

func (c ClearCartCommand) Key() string     { return clearCartKey }
func (c ClearCartCommand) ActorID() string { return c.UserID }

type ClearCartHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ClearCartHandler) Handle(ctx context.Context, cmd ClearCartCommand) (dto.CartCleared, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.CartCleared{}, err
	}
	removed, err := unit.Cart().Clear(execCtx, cmd.UserID)
	if err = done(err); err != nil {
		return dto.CartCleared{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("cart cleared", "user_id", cmd.UserID, "removed", removed)
	}
	return dto.CartCleared{Removed: removed}, nil
}

var (
	_ commands.Handler[RemoveItemCommand, dto.CartCleared] = (*RemoveItemHandler)(nil)
	_ commands.Handler[ClearCartCommand, dto.CartCleared]  = (*ClearCartHandler)(nil)
)
