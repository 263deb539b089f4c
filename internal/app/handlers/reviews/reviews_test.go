package reviews

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villabook/internal/app/apperr"
	domainbooking "villabook/internal/domain/booking"
	domainproperties "villabook/internal/domain/properties"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
	"villabook/internal/infra/storage/memory"
)

var now = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	p, err := domainproperties.NewProperty(domainproperties.Params{
		ID: "villa-1", Title: "Villa One", NightlyRate: money.Must(100, "USD"), MaxGuests: 4, Active: true, Now: now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Properties.Save(ctx, p))
	return store
}

func stay(t *testing.T, store *memory.Store, id, user, start string, status domainbooking.Status) {
	t.Helper()
	ctx := context.Background()
	first, err := time.Parse(time.DateOnly, start)
	require.NoError(t, err)
	dr, err := daterange.New(first, first.AddDate(0, 0, 2))
	require.NoError(t, err)
	b, err := domainbooking.NewPending(domainbooking.CreateParams{
		ID: domainbooking.BookingID(id), PropertyID: "villa-1", UserID: user, Range: dr, Guests: 1, OrderID: "ORDER-" + id, CreatedAt: now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Bookings.Insert(ctx, []*domainbooking.Booking{b}))
	switch status {
	case domainbooking.StatusConfirmed:
		require.NoError(t, b.Confirm(now))
	case domainbooking.StatusCompleted:
		require.NoError(t, b.Confirm(now))
		require.NoError(t, b.Complete(now))
	case domainbooking.StatusCancelled:
		require.NoError(t, b.Cancel("test", now))
	}
	require.NoError(t, store.Bookings.Save(ctx, b))
}

func kindAndCode(err error) (apperr.Kind, string) {
	typed, ok := apperr.As(err)
	if !ok {
		return "", ""
	}
	return typed.Kind, typed.Code
}

func TestCreateReviewRequiresCompletedStay(t *testing.T) {
	store := newStore(t)
	factory := memory.Factory{Store: store}
	create := &CreateReviewHandler{UoWFactory: factory}
	eligibility := &EligibilityHandler{UoWFactory: factory}
	ctx := context.Background()

	stay(t, store, "bk-1", "user-1", "2030-02-01", domainbooking.StatusConfirmed)
	_, err := create.Handle(ctx, CreateReviewCommand{UserID: "user-1", PropertyID: "villa-1", Rating: 5, Now: now})
	kind, code := kindAndCode(err)
	assert.Equal(t, apperr.KindAuthorization, kind)
	assert.Equal(t, "review_not_eligible", code)

	el, err := eligibility.Handle(ctx, EligibilityQuery{UserID: "user-1", PropertyID: "villa-1"})
	require.NoError(t, err)
	assert.False(t, el.Eligible)

	stay(t, store, "bk-2", "user-1", "2030-02-10", domainbooking.StatusCompleted)
	review, err := create.Handle(ctx, CreateReviewCommand{UserID: "user-1", PropertyID: "villa-1", Rating: 5, Comment: "great", Now: now})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)

	el, err = eligibility.Handle(ctx, EligibilityQuery{UserID: "user-1", PropertyID: "villa-1"})
	require.NoError(t, err)
	assert.True(t, el.Eligible)
	assert.True(t, el.AlreadyReview)

	_, err = create.Handle(ctx, CreateReviewCommand{UserID: "user-1", PropertyID: "villa-1", Rating: 4, Now: now})
	_, code = kindAndCode(err)
	assert.Equal(t, "review_exists", code)
}

func TestCreateReviewValidatesRating(t *testing.T) {
	store := newStore(t)
	stay(t, store, "bk-1", "user-1", "2030-02-01", domainbooking.StatusCompleted)
	create := &CreateReviewHandler{UoWFactory: memory.Factory{Store: store}}

	_, err := create.Handle(context.Background(), CreateReviewCommand{UserID: "user-1", PropertyID: "villa-1", Rating: 6, Now: now})
	kind, code := kindAndCode(err)
	assert.Equal(t, apperr.KindValidation, kind)
	assert.Equal(t, "invalid_rating", code)
}

func TestUpdateAndDeleteOwnership(t *testing.T) {
	store := newStore(t)
	factory := memory.Factory{Store: store}
	stay(t, store, "bk-1", "user-1", "2030-02-01", domainbooking.StatusCompleted)
	review, err := (&CreateReviewHandler{UoWFactory: factory}).Handle(context.Background(), CreateReviewCommand{
		UserID: "user-1", PropertyID: "villa-1", Rating: 3, Comment: "fine", Now: now,
	})
	require.NoError(t, err)

	update := &UpdateReviewHandler{UoWFactory: factory}
	del := &DeleteReviewHandler{UoWFactory: factory}
	ctx := context.Background()
	rating := 4

	_, err = update.Handle(ctx, UpdateReviewCommand{UserID: "user-2", ReviewID: review.ID, Rating: &rating})
	_, code := kindAndCode(err)
	assert.Equal(t, "not_review_owner", code)

	later := now.Add(time.Hour)
	updated, err := update.Handle(ctx, UpdateReviewCommand{UserID: "user-1", ReviewID: review.ID, Rating: &rating, Now: later})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)
	assert.Equal(t, "fine", updated.Comment)
	assert.Equal(t, review.CreatedAt, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)

	_, err = del.Handle(ctx, DeleteReviewCommand{UserID: "user-2", UserRole: "user", ReviewID: review.ID})
	_, code = kindAndCode(err)
	assert.Equal(t, "not_review_owner", code)

	_, err = del.Handle(ctx, DeleteReviewCommand{UserID: "admin-1", UserRole: "admin", ReviewID: review.ID})
	require.NoError(t, err)

	_, err = del.Handle(ctx, DeleteReviewCommand{UserID: "user-1", ReviewID: review.ID})
	_, code = kindAndCode(err)
	assert.Equal(t, "review_not_found", code)
}

func TestListPropertyReviewsPaginates(t *testing.T) {
	store := newStore(t)
	factory := memory.Factory{Store: store}
	create := &CreateReviewHandler{UoWFactory: factory}
	for i, user := range []string{"user-1", "user-2", "user-3"} {
		stay(t, store, "bk-"+user, user, fmt.Sprintf("2030-02-%02d", 1+3*i), domainbooking.StatusCompleted)
		_, err := create.Handle(context.Background(), CreateReviewCommand{
			UserID: user, PropertyID: "villa-1", Rating: i + 3, Now: now.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	list := &ListPropertyReviewsHandler{UoWFactory: factory}

	page, err := list.Handle(context.Background(), ListPropertyReviewsQuery{PropertyID: "villa-1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "user-3", page.Items[0].UserID)

	rest, err := list.Handle(context.Background(), ListPropertyReviewsQuery{PropertyID: "villa-1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "user-1", rest.Items[0].UserID)

	_, err = list.Handle(context.Background(), ListPropertyReviewsQuery{PropertyID: "missing"})
	_, code := kindAndCode(err)
	assert.Equal(t, "property_not_found", code)
}
