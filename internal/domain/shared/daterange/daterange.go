package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end date must be after start date")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval of calendar days [Start, End).
// Both bounds are normalized to UTC midnight.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a range from two calendar dates. Any time-of-day component is dropped.
func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Must is New that panics on invalid input; meant for fixtures and tests.
func Must(start, end time.Time) DateRange {
	dr, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return dr
}

// Parse reads two YYYY-MM-DD dates.
func Parse(start, end string) (DateRange, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return DateRange{}, err
	}
	return New(s, e)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrInvalidRange
	}
	if !dr.End.After(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts whole calendar days between Start and End.
func (dr DateRange) Nights() int {
	return int(Day(dr.End).Sub(Day(dr.Start)) / day)
}

// Overlaps reports whether two half-open ranges share at least one night.
// Back-to-back ranges (one ends the day the other starts) do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Start.Before(other.End) && other.Start.Before(dr.End)
}

// EachNight returns the start date of every night in the range.
func (dr DateRange) EachNight() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, dr.Start.Add(time.Duration(i)*day))
	}
	return out
}

// StartsBefore reports whether the range begins before the calendar day of t.
func (dr DateRange) StartsBefore(t time.Time) bool {
	return dr.Start.Before(Day(t))
}

// ElapsedAt reports whether the last night of the range is over at t.
func (dr DateRange) ElapsedAt(t time.Time) bool {
	return !Day(t).Before(dr.End)
}

func (dr DateRange) String() string {
	return dr.Start.Format(time.DateOnly) + "/" + dr.End.Format(time.DateOnly)
}
