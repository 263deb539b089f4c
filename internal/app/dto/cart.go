package dto

import (
	"time"

	domaincart "villabook/internal/domain/cart"
)

type PropertySnapshot struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	NightlyRate MoneyDTO `json:"nightly_rate"`
	MaxGuests   int      `json:"max_guests"`
	Active      bool     `json:"active"`
}

type CartLine struct {
	ID               string           `json:"id"`
	Property         PropertySnapshot `json:"property"`
	Dates            DateRangeDTO     `json:"dates"`
	Guests           int              `json:"guests"`
	Price            QuoteDTO         `json:"price"`
	IsAvailable      bool             `json:"is_available"`
	ConflictingDates []DateRangeDTO   `json:"conflicting_dates,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type CartSummary struct {
	ItemCount       int      `json:"item_count"`
	Subtotal        MoneyDTO `json:"subtotal"`
	TotalServiceFee MoneyDTO `json:"total_service_fee"`
	Total           MoneyDTO `json:"total"`
	AllAvailable    bool     `json:"all_available"`
}

type Cart struct {
	Items   []CartLine  `json:"items"`
	Summary CartSummary `json:"summary"`
}

type CartItem struct {
	ID         string       `json:"id"`
	PropertyID string       `json:"property_id"`
	Dates      DateRangeDTO `json:"dates"`
	Guests     int          `json:"guests"`
}

type CartCleared struct {
	Removed int `json:"removed"`
}

func MapCartItem(item *domaincart.Item) CartItem {
	return CartItem{
		ID:         string(item.ID),
		PropertyID: string(item.PropertyID),
		Dates:      MapRange(item.Range),
		Guests:     item.Guests,
	}
}

func MapCart(lines []domaincart.Line, summary domaincart.Summary) Cart {
	items := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		items = append(items, CartLine{
			ID: string(l.Item.ID),
			Property: PropertySnapshot{
				ID:          string(l.Property.ID),
				Title:       l.Property.Title,
				NightlyRate: MapMoney(l.Property.NightlyRate),
				MaxGuests:   l.Property.MaxGuests,
				Active:      l.Property.Active,
			},
			Dates:            MapRange(l.Item.Range),
			Guests:           l.Item.Guests,
			Price:            MapQuote(l.Quote),
			IsAvailable:      l.Available(),
			ConflictingDates: MapRanges(l.Availability.Conflicts),
			UpdatedAt:        l.Item.UpdatedAt,
		})
	}
	return Cart{
		Items: items,
		Summary: CartSummary{
			ItemCount:       summary.ItemCount,
			Subtotal:        MapMoney(summary.Subtotal),
			TotalServiceFee: MapMoney(summary.TotalServiceFee),
			Total:           MapMoney(summary.Total),
			AllAvailable:    summary.AllAvailable,
		},
	}
}
