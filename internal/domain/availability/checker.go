package availability

import (
	"context"
	"sort"

	"villabook/internal/domain/booking"
	"villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
)

// BookingFinder is the slice of the booking repository the checker depends on.
type BookingFinder interface {
	FindBlocking(ctx context.Context, propertyID properties.PropertyID, dr daterange.DateRange) ([]*booking.Booking, error)
}

// Result describes whether a range is free and, if not, which stays collide with it.
type Result struct {
	Available bool                  `json:"available"`
	Conflicts []daterange.DateRange `json:"conflicting_dates,omitempty"`
}

// Checker answers availability questions against persisted bookings.
type Checker struct {
	Bookings BookingFinder
}

// Check reports whether dr is free for the property. Cancelled bookings never block.
// The overlap test is re-applied to the repository answer so a coarse finder stays correct.
func (c Checker) Check(ctx context.Context, propertyID properties.PropertyID, dr daterange.DateRange) (Result, error) {
	found, err := c.Bookings.FindBlocking(ctx, propertyID, dr)
	if err != nil {
		return Result{}, err
	}
	return Evaluate(dr, found), nil
}

// Evaluate is the pure part of Check.
func Evaluate(dr daterange.DateRange, existing []*booking.Booking) Result {
	var conflicts []daterange.DateRange
	for _, b := range existing {
		if b == nil || !b.Status.Blocks() {
			continue
		}
		if b.Range.Overlaps(dr) {
			conflicts = append(conflicts, b.Range)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Start.Before(conflicts[j].Start) })
	return Result{Available: len(conflicts) == 0, Conflicts: conflicts}
}
