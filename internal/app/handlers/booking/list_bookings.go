package booking

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"villabook/internal/app/dto"
	"villabook/internal/app/queries"
	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

const listBookingsKey = "booking.list_mine"

type ListMyBookingsQuery struct {
	UserID string `validate:"required"`
	Status string `validate:"omitempty,oneof=pending confirmed cancelled completed"`
}

func (q ListMyBookingsQuery) Key() string { return listBookingsKey }

type ListMyBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListMyBookingsHandler) Handle(ctx context.Context, q ListMyBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, done, err := uow.Acquire(ctx, h.UoWFactory, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return dto.BookingCollection{}, err
	}
	out, err := h.list(execCtx, unit, q)
	return out, done(err)
}

func (h *ListMyBookingsHandler) list(ctx context.Context, unit uow.UnitOfWork, q ListMyBookingsQuery) (dto.BookingCollection, error) {
	bookings, err := unit.Bookings().ListByUser(ctx, q.UserID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})

	titles := make(map[domainproperties.PropertyID]string)
	reviewable := make(map[domainproperties.PropertyID]bool)
	items := make([]dto.BookingSummary, 0, len(bookings))
	for _, b := range bookings {
		if q.Status != "" && string(b.Status) != q.Status {
			continue
		}
		title, ok := titles[b.PropertyID]
		if !ok {
			if p, err := unit.Properties().ByID(ctx, b.PropertyID); err == nil {
				title = p.Title
			}
			titles[b.PropertyID] = title
		}
		canReview := false
		if b.Status == domainbooking.StatusCompleted {
			eligible, seen := reviewable[b.PropertyID]
			if !seen {
				_, err := unit.Reviews().ByUserAndProperty(ctx, q.UserID, b.PropertyID)
				if err != nil && !errors.Is(err, domainreviews.ErrNotFound) {
					return dto.BookingCollection{}, err
				}
				eligible = err != nil
				reviewable[b.PropertyID] = eligible
			}
			canReview = eligible
		}
		items = append(items, dto.MapBookingSummary(b, title, canReview))
	}
	if h.Logger != nil {
		h.Logger.Debug("bookings listed", "user_id", q.UserID, "count", len(items))
	}
	return dto.BookingCollection{Items: items}, nil
}

var _ queries.Handler[ListMyBookingsQuery, dto.BookingCollection] = (*ListMyBookingsHandler)(nil)
