package dto

import (
	"time"

	domainbooking "villabook/internal/domain/booking"
	"villabook/internal/domain/pricing"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type DateRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type QuoteDTO struct {
	Nights      int      `json:"nights"`
	NightlyRate MoneyDTO `json:"nightly_rate"`
	Subtotal    MoneyDTO `json:"subtotal"`
	ServiceFee  MoneyDTO `json:"service_fee"`
	Total       MoneyDTO `json:"total"`
}

type BookingSummary struct {
	ID            string       `json:"id"`
	PropertyID    string       `json:"property_id"`
	PropertyTitle string       `json:"property_title,omitempty"`
	Dates         DateRangeDTO `json:"dates"`
	Guests        int          `json:"guests"`
	Status        string       `json:"status"`
	OrderID       string       `json:"order_id,omitempty"`
	ServiceFee    MoneyDTO     `json:"service_fee"`
	TotalPrice    MoneyDTO     `json:"total_price"`
	CreatedAt     time.Time    `json:"created_at"`
	CanReview     bool         `json:"can_review"`
}

type BookingCollection struct {
	Items []BookingSummary `json:"items"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapRange(dr daterange.DateRange) DateRangeDTO {
	return DateRangeDTO{Start: dr.Start.Format(time.DateOnly), End: dr.End.Format(time.DateOnly)}
}

func MapRanges(ranges []daterange.DateRange) []DateRangeDTO {
	if len(ranges) == 0 {
		return nil
	}
	out := make([]DateRangeDTO, 0, len(ranges))
	for _, dr := range ranges {
		out = append(out, MapRange(dr))
	}
	return out
}

func MapQuote(q pricing.Quote) QuoteDTO {
	return QuoteDTO{
		Nights:      q.Nights,
		NightlyRate: MapMoney(q.NightlyRate),
		Subtotal:    MapMoney(q.Subtotal),
		ServiceFee:  MapMoney(q.ServiceFee),
		Total:       MapMoney(q.Total),
	}
}

func MapBookingSummary(b *domainbooking.Booking, propertyTitle string, canReview bool) BookingSummary {
	return BookingSummary{
		ID:            string(b.ID),
		PropertyID:    string(b.PropertyID),
		PropertyTitle: propertyTitle,
		Dates:         MapRange(b.Range),
		Guests:        b.Guests,
		Status:        string(b.Status),
		OrderID:       b.OrderID,
		ServiceFee:    MapMoney(b.Price.ServiceFee),
		TotalPrice:    MapMoney(b.Price.Total),
		CreatedAt:     b.CreatedAt,
		CanReview:     canReview,
	}
}
