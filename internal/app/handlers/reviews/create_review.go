package reviews

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

const createReviewKey = "reviews.create"

// CreateReviewCommand submits the caller's review of a property they stayed at.
type CreateReviewCommand struct {
	UserID     string `validate:"required"`
	PropertyID string `validate:"required"`
	Rating     int
	Comment    string
	Now        time.Time
}

func (c CreateReviewCommand) Key() string     { return createReviewKey }
func (c CreateReviewCommand) ActorID() string { return c.UserID }

type CreateReviewHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *CreateReviewHandler) Handle(ctx context.Context, cmd CreateReviewCommand) (dto.Review, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Review{}, err
	}
	review, err := h.create(execCtx, unit, cmd)
	if err = done(err); err != nil {
		return dto.Review{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("review submitted", "review_id", review.ID, "property_id", review.PropertyID, "user_id", cmd.UserID, "rating", review.Rating)
	}
	return dto.MapReview(review), nil
}

func (h *CreateReviewHandler) create(ctx context.Context, unit uow.UnitOfWork, cmd CreateReviewCommand) (*domainreviews.Review, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	pid := domainproperties.PropertyID(cmd.PropertyID)
	if err := CheckEligibility(ctx, unit, cmd.UserID, pid); err != nil {
		return nil, err
	}
	if _, err := unit.Reviews().ByUserAndProperty(ctx, cmd.UserID, pid); err == nil {
		return nil, Classify(domainreviews.ErrDuplicate)
	} else if !errors.Is(err, domainreviews.ErrNotFound) {
		return nil, err
	}
	review, err := domainreviews.Submit(domainreviews.SubmitParams{
		ID:         domainreviews.ReviewID(uuid.NewString()),
		UserID:     cmd.UserID,
		PropertyID: pid,
		Rating:     cmd.Rating,
		Comment:    cmd.Comment,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, Classify(err)
	}
	if err := unit.Reviews().Save(ctx, review); err != nil {
		return nil, Classify(err)
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, review); err != nil {
		return nil, err
	}
	return review, nil
}

var _ commands.Handler[CreateReviewCommand, dto.Review] = (*CreateReviewHandler)(nil)
