package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"villabook/internal/domain/pricing"
	"villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/events"
)

var (
	ErrInvalidGuests    = errors.New("booking: guests count must be positive")
	ErrUserRequired     = errors.New("booking: user id required")
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrAlreadyCancelled = errors.New("booking: already cancelled")
	ErrStayNotElapsed   = errors.New("booking: stay has not ended yet")
	ErrBookingNotFound  = errors.New("booking: not found")
	// ErrOverlap is returned by repositories when an insert would double-book a property.
	ErrOverlap = errors.New("booking: date range overlaps an existing booking")
	// ErrStaleBooking is returned by Save when the stored version moved since the booking was loaded.
	ErrStaleBooking = errors.New("booking: booking was modified concurrently")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Blocks reports whether a booking in this status occupies its dates.
func (s Status) Blocks() bool {
	return s != StatusCancelled
}

type Booking struct {
	ID           BookingID
	PropertyID   properties.PropertyID
	UserID       string
	Range        daterange.DateRange
	Guests       int
	Price        pricing.Quote
	Status       Status
	OrderID      string
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// FindBlocking returns non-cancelled bookings of the property overlapping dr.
	FindBlocking(ctx context.Context, propertyID properties.PropertyID, dr daterange.DateRange) ([]*Booking, error)
	// Insert stores all bookings or none. It fails with ErrOverlap when any of them
	// collides with a blocking booking of the same property, including one in the batch.
	Insert(ctx context.Context, bookings []*Booking) error
	Save(ctx context.Context, booking *Booking) error
	ListByUser(ctx context.Context, userID string) ([]*Booking, error)
	ListByOrder(ctx context.Context, orderID string) ([]*Booking, error)
	// ListCreatedBefore returns bookings in the status created strictly before the cutoff.
	ListCreatedBefore(ctx context.Context, status Status, cutoff time.Time) ([]*Booking, error)
	// ListEndedBy returns bookings in the status whose end date is on or before day.
	ListEndedBy(ctx context.Context, status Status, day time.Time) ([]*Booking, error)
	HasCompletedStay(ctx context.Context, userID string, propertyID properties.PropertyID) (bool, error)
}

type CreateParams struct {
	ID         BookingID
	PropertyID properties.PropertyID
	UserID     string
	Range      daterange.DateRange
	Guests     int
	Price      pricing.Quote
	OrderID    string
	CreatedAt  time.Time
}

// NewPending creates a booking awaiting payment.
func NewPending(params CreateParams) (*Booking, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrUserRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:         params.ID,
		PropertyID: params.PropertyID,
		UserID:     params.UserID,
		Range:      params.Range,
		Guests:     params.Guests,
		Price:      params.Price,
		Status:     StatusPending,
		OrderID:    params.OrderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	b.Record(Requested{BookingID: b.ID, PropertyID: b.PropertyID, UserID: b.UserID, Range: b.Range, Total: b.Price.Total.Amount, Currency: b.Price.Total.Currency, OrderID: b.OrderID, At: now})
	return b, nil
}

func (b *Booking) Confirm(now time.Time) error {
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	b.Status = StatusConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(Confirmed{BookingID: b.ID, PropertyID: b.PropertyID, UserID: b.UserID, Range: b.Range, OrderID: b.OrderID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Cancel(reason string, now time.Time) error {
	switch b.Status {
	case StatusPending, StatusConfirmed:
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrInvalidState
	}
	b.Status = StatusCancelled
	b.CancelReason = reason
	b.UpdatedAt = now.UTC()
	b.Record(Cancelled{BookingID: b.ID, PropertyID: b.PropertyID, UserID: b.UserID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// Complete closes a confirmed stay once its last night is over.
func (b *Booking) Complete(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidState
	}
	if !b.Range.ElapsedAt(now) {
		return ErrStayNotElapsed
	}
	b.Status = StatusCompleted
	b.UpdatedAt = now.UTC()
	b.Record(Completed{BookingID: b.ID, PropertyID: b.PropertyID, UserID: b.UserID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) OwnedBy(userID string) bool {
	return b.UserID == userID
}

// Clone returns a copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.EventRecorder = events.EventRecorder{}
	return &c
}
