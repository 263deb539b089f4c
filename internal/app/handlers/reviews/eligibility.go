package reviews

import (
	"context"
	"errors"
	"log/slog"

	"villabook/internal/app/apperr"
	"villabook/internal/app/dto"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

const eligibilityKey = "reviews.eligibility"

var (
	ErrNotEligible = errors.New("reviews: a completed stay is required")
	ErrNotOwner    = errors.New("reviews: review belongs to another user")
)

type EligibilityQuery struct {
	UserID     string `validate:"required"`
	PropertyID string `validate:"required"`
}

func (q EligibilityQuery) Key() string { return eligibilityKey }

type EligibilityHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

// Handle reports eligibility without failing, so clients can decide whether to show the form.
func (h *EligibilityHandler) Handle(ctx context.Context, q EligibilityQuery) (dto.ReviewEligibility, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.ReviewEligibility{}, err
	}
	out := dto.ReviewEligibility{PropertyID: q.PropertyID}
	pid := domainproperties.PropertyID(q.PropertyID)
	err = CheckEligibility(execCtx, unit, q.UserID, pid)
	switch {
	case err == nil:
		out.Eligible = true
	case apperr.KindOf(err) == apperr.KindAuthorization:
		err = nil
	default:
		return dto.ReviewEligibility{}, done(err)
	}
	if _, rerr := unit.Reviews().ByUserAndProperty(execCtx, q.UserID, pid); rerr == nil {
		out.AlreadyReview = true
	} else if !errors.Is(rerr, domainreviews.ErrNotFound) {
		err = rerr
	}
	return out, done(err)
}

// CheckEligibility requires at least one completed stay of the user at the property.
func CheckEligibility(ctx context.Context, unit uow.UnitOfWork, userID string, propertyID domainproperties.PropertyID) error {
	ok, err := unit.Bookings().HasCompletedStay(ctx, userID, propertyID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Authorization("review_not_eligible", ErrNotEligible)
	}
	return nil
}

// Classify maps review errors onto the client taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainreviews.ErrNotFound):
		return apperr.NotFound("review_not_found", err)
	case errors.Is(err, domainreviews.ErrDuplicate):
		return apperr.Conflict("review_exists", err)
	case errors.Is(err, domainreviews.ErrInvalidRating):
		return apperr.Validation("invalid_rating", err)
	case errors.Is(err, domainreviews.ErrCommentLength):
		return apperr.Validation("comment_too_long", err)
	case errors.Is(err, domainproperties.ErrNotFound):
		return apperr.NotFound("property_not_found", err)
	default:
		return err
	}
}

var _ queries.Handler[EligibilityQuery, dto.ReviewEligibility] = (*EligibilityHandler)(nil)
