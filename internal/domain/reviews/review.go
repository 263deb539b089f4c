package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"villabook/internal/domain/properties"
	"villabook/internal/domain/shared/events"
)

var (
	ErrInvalidRating = errors.New("reviews: rating must be between 1 and 5")
	ErrNotFound      = errors.New("reviews: not found")
	ErrDuplicate     = errors.New("reviews: review already exists for this property")
	ErrCommentLength = errors.New("reviews: comment is too long")
)

const maxCommentLength = 2000

type ReviewID string

type Review struct {
	ID         ReviewID
	UserID     string
	PropertyID properties.PropertyID
	Rating     int
	Comment    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ReviewID) (*Review, error)
	ByUserAndProperty(ctx context.Context, userID string, propertyID properties.PropertyID) (*Review, error)
	ListByProperty(ctx context.Context, propertyID properties.PropertyID, limit, offset int) ([]*Review, int, error)
	// Save inserts or updates. Inserting a second review for the same (user, property) fails with ErrDuplicate.
	Save(ctx context.Context, review *Review) error
	Delete(ctx context.Context, id ReviewID) error
}

type SubmitParams struct {
	ID         ReviewID
	UserID     string
	PropertyID properties.PropertyID
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

func Submit(params SubmitParams) (*Review, error) {
	if err := validateRating(params.Rating); err != nil {
		return nil, err
	}
	comment, err := normalizeComment(params.Comment)
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	review := &Review{
		ID:         params.ID,
		UserID:     params.UserID,
		PropertyID: params.PropertyID,
		Rating:     params.Rating,
		Comment:    comment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	review.Record(Submitted{ReviewID: review.ID, PropertyID: review.PropertyID, UserID: review.UserID, Rating: review.Rating, At: now})
	return review, nil
}

// Edit changes rating and/or comment. CreatedAt is never touched.
func (r *Review) Edit(rating *int, comment *string, now time.Time) error {
	if rating != nil {
		if err := validateRating(*rating); err != nil {
			return err
		}
	}
	var text string
	if comment != nil {
		var err error
		if text, err = normalizeComment(*comment); err != nil {
			return err
		}
	}
	if rating != nil {
		r.Rating = *rating
	}
	if comment != nil {
		r.Comment = text
	}
	r.UpdatedAt = now.UTC()
	r.Record(Updated{ReviewID: r.ID, PropertyID: r.PropertyID, Rating: r.Rating, At: r.UpdatedAt})
	return nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

func normalizeComment(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if len([]rune(text)) > maxCommentLength {
		return "", ErrCommentLength
	}
	return text, nil
}
