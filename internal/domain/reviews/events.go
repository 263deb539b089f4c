package reviews

import (
	"time"

	"villabook/internal/domain/properties"
)

type Submitted struct {
	ReviewID   ReviewID              `json:"review_id"`
	PropertyID properties.PropertyID `json:"property_id"`
	UserID     string                `json:"user_id"`
	Rating     int                   `json:"rating"`
	At         time.Time             `json:"at"`
}

func (e Submitted) EventName() string     { return "review.submitted" }
func (e Submitted) AggregateID() string   { return string(e.ReviewID) }
func (e Submitted) OccurredAt() time.Time { return e.At }

type Updated struct {
	ReviewID   ReviewID              `json:"review_id"`
	PropertyID properties.PropertyID `json:"property_id"`
	Rating     int                   `json:"rating"`
	At         time.Time             `json:"at"`
}

func (e Updated) EventName() string     { return "review.updated" }
func (e Updated) AggregateID() string   { return string(e.ReviewID) }
func (e Updated) OccurredAt() time.Time { return e.At }
