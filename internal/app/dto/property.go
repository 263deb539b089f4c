package dto

import (
	"time"

	domainproperties "villabook/internal/domain/properties"
)

type Property struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	NightlyRate MoneyDTO  `json:"nightly_rate"`
	MaxGuests   int       `json:"max_guests"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Availability struct {
	PropertyID       string         `json:"property_id"`
	Dates            DateRangeDTO   `json:"dates"`
	Available        bool           `json:"available"`
	ConflictingDates []DateRangeDTO `json:"conflicting_dates,omitempty"`
	Price            *QuoteDTO      `json:"price,omitempty"`
}

func MapProperty(p *domainproperties.Property) Property {
	return Property{
		ID:          string(p.ID),
		Title:       p.Title,
		NightlyRate: MapMoney(p.NightlyRate),
		MaxGuests:   p.MaxGuests,
		Active:      p.Active,
		UpdatedAt:   p.UpdatedAt,
	}
}
