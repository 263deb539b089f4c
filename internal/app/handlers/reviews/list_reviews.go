package reviews

import (
	"context"
	"log/slog"

	"villabook/internal/app/dto"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
	domainproperties "villabook/internal/domain/properties"
)

const listPropertyReviewsKey = "reviews.property.list"

// ListPropertyReviewsQuery retrieves reviews for a property, newest first.
type ListPropertyReviewsQuery struct {
	PropertyID string `validate:"required"`
	Limit      int
	Offset     int
}

func (q ListPropertyReviewsQuery) Key() string { return listPropertyReviewsKey }

type ListPropertyReviewsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListPropertyReviewsHandler) Handle(ctx context.Context, q ListPropertyReviewsQuery) (dto.ReviewCollection, error) {
	limit := normalizeLimit(q.Limit)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.ReviewCollection{}, err
	}
	out, err := h.list(execCtx, unit, domainproperties.PropertyID(q.PropertyID), limit, offset)
	return out, done(err)
}

func (h *ListPropertyReviewsHandler) list(ctx context.Context, unit uow.UnitOfWork, pid domainproperties.PropertyID, limit, offset int) (dto.ReviewCollection, error) {
	if _, err := unit.Properties().ByID(ctx, pid); err != nil {
		return dto.ReviewCollection{}, Classify(err)
	}
	page, total, err := unit.Reviews().ListByProperty(ctx, pid, limit, offset)
	if err != nil {
		return dto.ReviewCollection{}, err
	}
	items := make([]dto.Review, 0, len(page))
	for _, review := range page {
		items = append(items, dto.MapReview(review))
	}
	if h.Logger != nil {
		h.Logger.Debug("property reviews listed", "property_id", pid, "count", len(items), "total", total)
	}
	return dto.ReviewCollection{Items: items, Total: total}, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

var _ queries.Handler[ListPropertyReviewsQuery, dto.ReviewCollection] = (*ListPropertyReviewsHandler)(nil)
