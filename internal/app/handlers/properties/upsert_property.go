package properties

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/money"
	domainuser "villabook/internal/domain/user"
)

const upsertPropertyKey = "properties.upsert"

// UpsertPropertyCommand creates or revises a property. Admin only.
type UpsertPropertyCommand struct {
	ActorUserID      string
	ActorUserRole    string
	PropertyID       string `validate:"required,max=64"`
	Title            string `validate:"required,max=200"`
	NightlyRateMinor int64  `validate:"gt=0"`
	Currency         string `validate:"omitempty,len=3"`
	MaxGuests        int    `validate:"gt=0,lte=64"`
	Active           bool
}

func (c UpsertPropertyCommand) Key() string          { return upsertPropertyKey }
func (c UpsertPropertyCommand) ActorID() string      { return c.ActorUserID }
func (c UpsertPropertyCommand) ActorRole() string    { return c.ActorUserRole }
func (c UpsertPropertyCommand) RequiredRole() string { return string(domainuser.RoleAdmin) }

// CacheInvalidator drops cached copies of a property.
type CacheInvalidator interface {
	Forget(id domainproperties.PropertyID)
}

type UpsertPropertyHandler struct {
	UoWFactory      uow.UoWFactory
	Outbox          outbox.Outbox
	Encoder         outbox.EventEncoder
	Cache           CacheInvalidator
	DefaultCurrency string
	Now             func() time.Time
	Logger          *slog.Logger
}

func (h *UpsertPropertyHandler) Handle(ctx context.Context, cmd UpsertPropertyCommand) (dto.Property, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Property{}, err
	}
	result, err := h.upsert(execCtx, unit, cmd)
	if err = done(err); err != nil {
		return dto.Property{}, err
	}
	if h.Cache != nil {
		h.Cache.Forget(domainproperties.PropertyID(cmd.PropertyID))
	}
	return result, nil
}

func (h *UpsertPropertyHandler) upsert(ctx context.Context, unit uow.UnitOfWork, cmd UpsertPropertyCommand) (dto.Property, error) {
	currency := cmd.Currency
	if currency == "" {
		currency = h.DefaultCurrency
	}
	rate, err := money.New(cmd.NightlyRateMinor, currency)
	if err != nil {
		return dto.Property{}, Classify(err)
	}
	params := domainproperties.Params{
		ID:          domainproperties.PropertyID(cmd.PropertyID),
		Title:       cmd.Title,
		NightlyRate: rate,
		MaxGuests:   cmd.MaxGuests,
		Active:      cmd.Active,
		Now:         h.now(),
	}

	property, err := unit.Properties().ByID(ctx, params.ID)
	created := false
	switch {
	case errors.Is(err, domainproperties.ErrNotFound):
		property, err = domainproperties.NewProperty(params)
		created = true
	case err == nil:
		err = property.Revise(params)
	}
	if err != nil {
		return dto.Property{}, Classify(err)
	}
	if err := unit.Properties().Save(ctx, property); err != nil {
		return dto.Property{}, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, property); err != nil {
		return dto.Property{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("property saved", "property_id", property.ID, "created", created, "rate", property.NightlyRate.String(), "actor", cmd.ActorUserID)
	}
	return dto.MapProperty(property), nil
}

func (h *UpsertPropertyHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

var _ commands.Handler[UpsertPropertyCommand, dto.Property] = (*UpsertPropertyHandler)(nil)
