package properties

import (
	"context"
	"errors"
	"strings"
	"time"

	"villabook/internal/domain/shared/events"
	"villabook/internal/domain/shared/money"
)

var (
	ErrNotFound         = errors.New("properties: not found")
	ErrIDRequired       = errors.New("properties: id is required")
	ErrInactive         = errors.New("properties: property is not bookable")
	ErrTitleRequired    = errors.New("properties: title is required")
	ErrInvalidRate      = errors.New("properties: nightly rate must be positive")
	ErrInvalidMaxGuests = errors.New("properties: max guests must be positive")
	ErrTooManyGuests    = errors.New("properties: guest count exceeds property capacity")
)

type PropertyID string

// Property is the bookable unit. It is owned by admins and read by carts and checkout.
type Property struct {
	ID          PropertyID
	Title       string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, property *Property) error
}

type Params struct {
	ID          PropertyID
	Title       string
	NightlyRate money.Money
	MaxGuests   int
	Active      bool
	Now         time.Time
}

func (p Params) validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return ErrIDRequired
	}
	if strings.TrimSpace(p.Title) == "" {
		return ErrTitleRequired
	}
	if p.NightlyRate.Amount <= 0 {
		return ErrInvalidRate
	}
	if p.NightlyRate.Currency == "" {
		return money.ErrInvalidCurrency
	}
	if p.MaxGuests <= 0 {
		return ErrInvalidMaxGuests
	}
	return nil
}

func NewProperty(params Params) (*Property, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	return &Property{
		ID:          params.ID,
		Title:       strings.TrimSpace(params.Title),
		NightlyRate: params.NightlyRate,
		MaxGuests:   params.MaxGuests,
		Active:      params.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Revise applies admin edits. A rate change is recorded so downstream caches can react.
func (p *Property) Revise(params Params) error {
	params.ID = p.ID
	if err := params.validate(); err != nil {
		return err
	}
	now := params.Now.UTC()
	if p.NightlyRate != params.NightlyRate {
		p.Record(RateChanged{PropertyID: p.ID, Previous: p.NightlyRate, Current: params.NightlyRate, At: now})
	}
	p.Title = strings.TrimSpace(params.Title)
	p.NightlyRate = params.NightlyRate
	p.MaxGuests = params.MaxGuests
	p.Active = params.Active
	p.UpdatedAt = now
	return nil
}

// EnsureBookable checks that the property accepts a stay for the given party size.
func (p *Property) EnsureBookable(guests int) error {
	if !p.Active {
		return ErrInactive
	}
	if guests > p.MaxGuests {
		return ErrTooManyGuests
	}
	return nil
}

type RateChanged struct {
	PropertyID PropertyID
	Previous   money.Money
	Current    money.Money
	At         time.Time
}

func (e RateChanged) EventName() string     { return "property.rate_changed" }
func (e RateChanged) AggregateID() string   { return string(e.PropertyID) }
func (e RateChanged) OccurredAt() time.Time { return e.At }
