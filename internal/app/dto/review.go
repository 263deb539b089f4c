package dto

import (
	"time"

	domainreviews "villabook/internal/domain/reviews"
)

// Review represents a public review payload.
type Review struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	UserID     string    `json:"user_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ReviewCollection struct {
	Items []Review `json:"items"`
	Total int      `json:"total"`
}

type ReviewEligibility struct {
	PropertyID    string `json:"property_id"`
	Eligible      bool   `json:"eligible"`
	AlreadyReview bool   `json:"already_reviewed"`
}

// MapReview builds a DTO from a domain review.
func MapReview(review *domainreviews.Review) Review {
	if review == nil {
		return Review{}
	}
	return Review{
		ID:         string(review.ID),
		PropertyID: string(review.PropertyID),
		UserID:     review.UserID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt,
		UpdatedAt:  review.UpdatedAt,
	}
}
