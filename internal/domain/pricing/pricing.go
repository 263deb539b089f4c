package pricing

import (
	"errors"

	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

// ServiceFeePercent is the surcharge added on top of the nightly subtotal.
const ServiceFeePercent = 10

var (
	ErrNonPositiveNights = errors.New("pricing: stay must cover at least one night")
	ErrNegativeRate      = errors.New("pricing: nightly rate cannot be negative")
)

// Quote is the price of one stay.
type Quote struct {
	Nights      int         `json:"nights"`
	NightlyRate money.Money `json:"nightly_rate"`
	Subtotal    money.Money `json:"subtotal"`
	ServiceFee  money.Money `json:"service_fee"`
	Total       money.Money `json:"total"`
}

// CalculateBookingPrice prices a stay. The caller guarantees dr spans at least one night;
// use Validate when the input has not been checked yet.
func CalculateBookingPrice(rate money.Money, dr daterange.DateRange) Quote {
	nights := dr.Nights()
	subtotal := rate.Multiply(int64(nights))
	fee := subtotal.Percent(ServiceFeePercent)
	return Quote{
		Nights:      nights,
		NightlyRate: rate,
		Subtotal:    subtotal,
		ServiceFee:  fee,
		Total:       money.Money{Amount: subtotal.Amount + fee.Amount, Currency: rate.Currency},
	}
}

// Validate checks the inputs CalculateBookingPrice assumes.
func Validate(rate money.Money, dr daterange.DateRange) error {
	if rate.Amount < 0 {
		return ErrNegativeRate
	}
	if rate.Currency == "" {
		return money.ErrInvalidCurrency
	}
	if dr.Nights() < 1 {
		return ErrNonPositiveNights
	}
	return nil
}
