package booking

import (
	"time"

	"villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
)

type Requested struct {
	BookingID  BookingID             `json:"booking_id"`
	PropertyID properties.PropertyID `json:"property_id"`
	UserID     string                `json:"user_id"`
	Range      daterange.DateRange   `json:"range"`
	Total      int64                 `json:"total"`
	Currency   string                `json:"currency"`
	OrderID    string                `json:"order_id"`
	At         time.Time             `json:"at"`
}

func (e Requested) EventName() string     { return "booking.requested" }
func (e Requested) AggregateID() string   { return string(e.BookingID) }
func (e Requested) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	BookingID  BookingID             `json:"booking_id"`
	PropertyID properties.PropertyID `json:"property_id"`
	UserID     string                `json:"user_id"`
	Range      daterange.DateRange   `json:"range"`
	OrderID    string                `json:"order_id"`
	At         time.Time             `json:"at"`
}

func (e Confirmed) EventName() string     { return "booking.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.BookingID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	BookingID  BookingID             `json:"booking_id"`
	PropertyID properties.PropertyID `json:"property_id"`
	UserID     string                `json:"user_id"`
	Reason     string                `json:"reason"`
	At         time.Time             `json:"at"`
}

func (e Cancelled) EventName() string     { return "booking.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.BookingID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }

type Completed struct {
	BookingID  BookingID             `json:"booking_id"`
	PropertyID properties.PropertyID `json:"property_id"`
	UserID     string                `json:"user_id"`
	At         time.Time             `json:"at"`
}

func (e Completed) EventName() string     { return "booking.completed" }
func (e Completed) AggregateID() string   { return string(e.BookingID) }
func (e Completed) OccurredAt() time.Time { return e.At }
