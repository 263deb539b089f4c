package properties

import (
	"context"
	"errors"
	"log/slog"

	"villabook/internal/app/apperr"
	"villabook/internal/app/dto"
	"villabook/internal/app/policies"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/money"
)

const getPropertyKey = "properties.get"

type GetPropertyQuery struct {
	PropertyID string `validate:"required"`
}

func (q GetPropertyQuery) Key() string { return getPropertyKey }

type GetPropertyHandler struct {
	Reader policies.PropertyReader
	Logger *slog.Logger
}

func (h *GetPropertyHandler) Handle(ctx context.Context, q GetPropertyQuery) (dto.Property, error) {
	property, err := h.Reader.Property(ctx, domainproperties.PropertyID(q.PropertyID))
	if err != nil {
		return dto.Property{}, Classify(err)
	}
	return dto.MapProperty(property), nil
}

// UnitReader reads properties through a read-only unit of work.
type UnitReader struct {
	UoWFactory uow.UoWFactory
}

func (r UnitReader) Property(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, r.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	property, err := unit.Properties().ByID(execCtx, id)
	return property, done(err)
}

// Classify maps property errors onto the client taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainproperties.ErrNotFound):
		return apperr.NotFound("property_not_found", err)
	case errors.Is(err, domainproperties.ErrInactive):
		return apperr.Conflict("property_inactive", err)
	case errors.Is(err, domainproperties.ErrTooManyGuests):
		return apperr.Validation("too_many_guests", err)
	case errors.Is(err, domainproperties.ErrIDRequired),
		errors.Is(err, domainproperties.ErrTitleRequired),
		errors.Is(err, domainproperties.ErrInvalidRate),
		errors.Is(err, domainproperties.ErrInvalidMaxGuests):
		return apperr.Validation("invalid_property", err)
	case errors.Is(err, money.ErrInvalidCurrency), errors.Is(err, money.ErrNegativeAmount):
		return apperr.Validation("invalid_rate", err)
	default:
		return err
	}
}

var _ queries.Handler[GetPropertyQuery, dto.Property] = (*GetPropertyHandler)(nil)
var _ policies.PropertyReader = UnitReader{}
