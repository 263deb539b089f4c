package reviews

import (
	"context"
	"log/slog"
	"time"

	"villabook/internal/app/apperr"
	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	"villabook/internal/app/outbox"
	"villabook/internal/app/uow"
	domainreviews "villabook/internal/domain/reviews"
	domainuser "villabook/internal/domain/user"
)

const (
	updateReviewKey = "reviews.update"
	deleteReviewKey = "reviews.delete"
)

// UpdateReviewCommand edits rating and/or comment. Only the author may edit.
type UpdateReviewCommand struct {
	UserID   string `validate:"required"`
	ReviewID string `validate:"required"`
	Rating   *int
	Comment  *string
	Now      time.Time
}

func (c UpdateReviewCommand) Key() string     { return updateReviewKey }
func (c UpdateReviewCommand) ActorID() string { return c.UserID }

type UpdateReviewHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *UpdateReviewHandler) Handle(ctx context.Context, cmd UpdateReviewCommand) (dto.Review, error) {
	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Review{}, err
	}
	review, err := unit.Reviews().ByID(execCtx, domainreviews.ReviewID(cmd.ReviewID))
	if err == nil && review.UserID != cmd.UserID {
		err = apperr.Authorization("not_review_owner", ErrNotOwner)
	}
	if err == nil {
		err = review.Edit(cmd.Rating, cmd.Comment, now)
	}
	if err == nil {
		err = unit.Reviews().Save(execCtx, review)
	}
	if err == nil {
		err = outbox.Drain(execCtx, h.Outbox, h.Encoder, review)
	}
	if err = done(Classify(err)); err != nil {
		return dto.Review{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("review updated", "review_id", review.ID, "user_id", cmd.UserID, "rating", review.Rating)
	}
	return dto.MapReview(review), nil
}

// DeleteReviewCommand removes a review. Authors and admins may delete.
type DeleteReviewCommand struct {
	UserID   string `validate:"required"`
	UserRole string
	ReviewID string `validate:"required"`
}

func (c DeleteReviewCommand) Key() string     { return deleteReviewKey }
func (c DeleteReviewCommand) ActorID() string { return c.UserID }

type DeleteReviewHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *DeleteReviewHandler) Handle(ctx context.Context, cmd DeleteReviewCommand) (struct{}, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return struct{}{}, err
	}
	review, err := unit.Reviews().ByID(execCtx, domainreviews.ReviewID(cmd.ReviewID))
	if err == nil && review.UserID != cmd.UserID && cmd.UserRole != string(domainuser.RoleAdmin) {
		err = apperr.Authorization("not_review_owner", ErrNotOwner)
	}
	if err == nil {
		err = unit.Reviews().Delete(execCtx, review.ID)
	}
	if err = done(Classify(err)); err != nil {
		return struct{}{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("review deleted", "review_id", cmd.ReviewID, "actor", cmd.UserID, "role", cmd.UserRole)
	}
	return struct{}{}, nil
}

var (
	_ commands.Handler[UpdateReviewCommand, dto.Review] = (*UpdateReviewHandler)(nil)
	_ commands.Handler[DeleteReviewCommand, struct{}]   = (*DeleteReviewHandler)(nil)
)
