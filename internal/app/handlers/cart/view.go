package cart

import (
	"context"
	"errors"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/policies"
	"villabook/internal/domain/availability"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

var ErrUnavailable = errors.New("cart: dates are not available")

// Price builds an annotated line for every item. A missing property yields an
// unavailable line instead of failing the whole cart.
func Price(ctx context.Context, reader policies.PropertyReader, bookings domainbooking.Repository, items []*domaincart.Item) ([]domaincart.Line, error) {
	checker := availability.Checker{Bookings: bookings}
	lines := make([]domaincart.Line, 0, len(items))
	for _, item := range items {
		line := domaincart.Line{Item: item}
		property, err := reader.Property(ctx, item.PropertyID)
		switch {
		case errors.Is(err, domainproperties.ErrNotFound):
			line.Property = domaincart.Snapshot{ID: item.PropertyID}
			lines = append(lines, line)
			continue
		case err != nil:
			return nil, err
		}
		line.Property = domaincart.SnapshotOf(property)
		line.Quote = pricing.CalculateBookingPrice(property.NightlyRate, item.Range)
		if line.Availability, err = checker.Check(ctx, item.PropertyID, item.Range); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ensureBookable runs every add/update precondition including a fresh availability check.
func ensureBookable(ctx context.Context, bookings domainbooking.Repository, property *domainproperties.Property, d domaincart.Draft, currency string, now time.Time) error {
	if err := d.Validate(property, now); err != nil {
		return Classify(err)
	}
	if currency != "" && property.NightlyRate.Currency != currency {
		return apperr.Validation("currency_mismatch", money.ErrCurrencyMismatch)
	}
	res, err := availability.Checker{Bookings: bookings}.Check(ctx, d.PropertyID, d.Range)
	if err != nil {
		return err
	}
	if !res.Available {
		return apperr.Conflict("dates_unavailable", ErrUnavailable)
	}
	return nil
}

// Classify maps cart and property errors onto the client taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domaincart.ErrItemNotFound):
		return apperr.NotFound("cart_item_not_found", err)
	case errors.Is(err, domaincart.ErrEmpty):
		return apperr.Conflict("cart_empty", err)
	case errors.Is(err, domaincart.ErrStartInPast):
		return apperr.Validation("start_in_past", err)
	case errors.Is(err, domaincart.ErrInvalidGuests), errors.Is(err, domaincart.ErrUserRequired):
		return apperr.Validation("invalid_cart_item", err)
	case errors.Is(err, daterange.ErrInvalidRange):
		return apperr.Validation("invalid_dates", err)
	case errors.Is(err, domainproperties.ErrNotFound):
		return apperr.NotFound("property_not_found", err)
	case errors.Is(err, domainproperties.ErrInactive):
		return apperr.Conflict("property_inactive", err)
	case errors.Is(err, domainproperties.ErrTooManyGuests):
		return apperr.Validation("too_many_guests", err)
	default:
		return err
	}
}
