package properties

import (
	"context"
	"log/slog"

	"villabook/internal/app/apperr"
	"villabook/internal/app/dto"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
	"villabook/internal/domain/availability"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "properties.availability"

// CheckAvailabilityQuery asks whether a property is free for [Start, End).
type CheckAvailabilityQuery struct {
	PropertyID string `validate:"required"`
	Start      string `validate:"required,datetime=2006-01-02"`
	End        string `validate:"required,datetime=2006-01-02"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.Parse(q.Start, q.End)
	if err != nil {
		return dto.Availability{}, apperr.Validation("invalid_dates", err)
	}
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.Availability{}, err
	}
	result, err := h.check(execCtx, unit, domainproperties.PropertyID(q.PropertyID), dr)
	return result, done(err)
}

func (h *CheckAvailabilityHandler) check(ctx context.Context, unit uow.UnitOfWork, id domainproperties.PropertyID, dr daterange.DateRange) (dto.Availability, error) {
	property, err := unit.Properties().ByID(ctx, id)
	if err != nil {
		return dto.Availability{}, Classify(err)
	}
	res, err := availability.Checker{Bookings: unit.Bookings()}.Check(ctx, id, dr)
	if err != nil {
		return dto.Availability{}, err
	}
	out := dto.Availability{
		PropertyID:       string(id),
		Dates:            dto.MapRange(dr),
		Available:        res.Available && property.Active,
		ConflictingDates: dto.MapRanges(res.Conflicts),
	}
	if out.Available {
		quote := dto.MapQuote(pricing.CalculateBookingPrice(property.NightlyRate, dr))
		out.Price = &quote
	}
	if h.Logger != nil {
		h.Logger.Debug("availability checked", "property_id", id, "range", dr.String(), "available", out.Available)
	}
	return out, nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
