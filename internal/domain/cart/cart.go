package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"villabook/internal/domain/availability"
	"villabook/internal/domain/pricing"
	"villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
)

var (
	ErrItemNotFound  = errors.New("cart: item not found")
	ErrEmpty         = errors.New("cart: cart is empty")
	ErrStartInPast   = errors.New("cart: start date is in the past")
	ErrInvalidGuests = errors.New("cart: guests count must be positive")
	ErrUserRequired  = errors.New("cart: user id required")
)

type ItemID string

// Item is an unconfirmed reservation intent owned by one user.
type Item struct {
	ID         ItemID
	UserID     string
	PropertyID properties.PropertyID
	Range      daterange.DateRange
	Guests     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository interface {
	// ByID returns the item only when it belongs to userID.
	ByID(ctx context.Context, userID string, id ItemID) (*Item, error)
	ListByUser(ctx context.Context, userID string) ([]*Item, error)
	Save(ctx context.Context, item *Item) error
	Delete(ctx context.Context, userID string, id ItemID) error
	// Clear removes every item of the user and reports how many were removed.
	Clear(ctx context.Context, userID string) (int, error)
}

// Draft is the mutable content of an item, validated the same way on add and on update.
type Draft struct {
	PropertyID properties.PropertyID
	Range      daterange.DateRange
	Guests     int
}

// Validate checks the draft against the property and the current day.
// Availability is checked separately because it needs I/O.
func (d Draft) Validate(property *properties.Property, now time.Time) error {
	if err := d.Range.Validate(); err != nil {
		return err
	}
	if d.Range.StartsBefore(now) {
		return ErrStartInPast
	}
	if d.Guests <= 0 {
		return ErrInvalidGuests
	}
	if property == nil {
		return properties.ErrNotFound
	}
	return property.EnsureBookable(d.Guests)
}

func NewItem(id ItemID, userID string, d Draft, now time.Time) (*Item, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	now = now.UTC()
	return &Item{
		ID:         id,
		UserID:     userID,
		PropertyID: d.PropertyID,
		Range:      d.Range,
		Guests:     d.Guests,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Patch holds optional edits of an item.
type Patch struct {
	Start  *time.Time
	End    *time.Time
	Guests *int
}

// Merge overlays the patch onto the item's current content.
func (i *Item) Merge(p Patch) (Draft, error) {
	start, end := i.Range.Start, i.Range.End
	if p.Start != nil {
		start = *p.Start
	}
	if p.End != nil {
		end = *p.End
	}
	dr, err := daterange.New(start, end)
	if err != nil {
		return Draft{}, err
	}
	guests := i.Guests
	if p.Guests != nil {
		guests = *p.Guests
	}
	return Draft{PropertyID: i.PropertyID, Range: dr, Guests: guests}, nil
}

func (i *Item) Apply(d Draft, now time.Time) {
	i.Range = d.Range
	i.Guests = d.Guests
	i.UpdatedAt = now.UTC()
}

// Snapshot is the property data shown next to a cart line.
type Snapshot struct {
	ID          properties.PropertyID
	Title       string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
}

func SnapshotOf(p *properties.Property) Snapshot {
	return Snapshot{ID: p.ID, Title: p.Title, NightlyRate: p.NightlyRate, MaxGuests: p.MaxGuests, Active: p.Active}
}

// Line is a priced, availability-annotated cart item.
type Line struct {
	Item         *Item
	Property     Snapshot
	Quote        pricing.Quote
	Availability availability.Result
}

// Available reports whether the line can be checked out as is.
func (l Line) Available() bool {
	return l.Availability.Available && l.Property.Active
}

type Summary struct {
	ItemCount       int
	Subtotal        money.Money
	TotalServiceFee money.Money
	Total           money.Money
	AllAvailable    bool
}

// Summarize folds priced lines into totals. AllAvailable is the AND of every line
// and is true for an empty cart.
func Summarize(currency string, lines []Line) Summary {
	s := Summary{
		ItemCount:       len(lines),
		Subtotal:        money.Zero(currency),
		TotalServiceFee: money.Zero(currency),
		Total:           money.Zero(currency),
		AllAvailable:    true,
	}
	for _, l := range lines {
		s.Subtotal.Amount += l.Quote.Subtotal.Amount
		s.TotalServiceFee.Amount += l.Quote.ServiceFee.Amount
		s.Total.Amount += l.Quote.Total.Amount
		s.AllAvailable = s.AllAvailable && l.Available()
	}
	return s
}
