package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/events"
)

// PropertyRepository keeps properties in memory. Values are copied in and out.
type PropertyRepository struct {
	mu    sync.RWMutex
	items map[domainproperties.PropertyID]domainproperties.Property
}

func NewPropertyRepository() *PropertyRepository {
	return &PropertyRepository{items: make(map[domainproperties.PropertyID]domainproperties.Property)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domainproperties.ErrNotFound
	}
	return &p, nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *domainproperties.Property) error {
	if p == nil || p.ID == "" {
		return domainproperties.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	c.EventRecorder = events.EventRecorder{}
	r.items[p.ID] = c
	return nil
}

// BookingRepository keeps bookings in memory. Insert checks and stores a whole batch
// under one lock, which is what makes it the exclusion boundary for this driver.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) FindBlocking(ctx context.Context, propertyID domainproperties.PropertyID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(b *domainbooking.Booking) bool {
		return b.PropertyID == propertyID && b.Status.Blocks() && b.Range.Overlaps(dr)
	}), nil
}

func (r *BookingRepository) Insert(ctx context.Context, bookings []*domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range bookings {
		if _, exists := r.items[b.ID]; exists {
			return domainbooking.ErrOverlap
		}
		for _, existing := range r.items {
			if existing.PropertyID == b.PropertyID && existing.Status.Blocks() && existing.Range.Overlaps(b.Range) {
				return domainbooking.ErrOverlap
			}
		}
		for _, other := range bookings[:i] {
			if other.PropertyID == b.PropertyID && other.Range.Overlaps(b.Range) {
				return domainbooking.ErrOverlap
			}
		}
	}
	for _, b := range bookings {
		b.Version = 1
		r.items[b.ID] = b.Clone()
	}
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if stored.Version != b.Version {
		return domainbooking.ErrStaleBooking
	}
	b.Version++
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(b *domainbooking.Booking) bool { return b.UserID == userID }), nil
}

func (r *BookingRepository) ListByOrder(ctx context.Context, orderID string) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(b *domainbooking.Booking) bool { return b.OrderID == orderID }), nil
}

func (r *BookingRepository) ListCreatedBefore(ctx context.Context, status domainbooking.Status, cutoff time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(b *domainbooking.Booking) bool {
		return b.Status == status && b.CreatedAt.Before(cutoff)
	}), nil
}

func (r *BookingRepository) ListEndedBy(ctx context.Context, status domainbooking.Status, day time.Time) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	limit := daterange.Day(day)
	return r.collect(func(b *domainbooking.Booking) bool {
		return b.Status == status && !b.Range.End.After(limit)
	}), nil
}

func (r *BookingRepository) HasCompletedStay(ctx context.Context, userID string, propertyID domainproperties.PropertyID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.items {
		if b.UserID == userID && b.PropertyID == propertyID && b.Status == domainbooking.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (r *BookingRepository) collect(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	var out []*domainbooking.Booking
	for _, b := range r.items {
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Start.Equal(out[j].Range.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.Start.Before(out[j].Range.Start)
	})
	return out
}

// CartRepository keeps cart items per user.
type CartRepository struct {
	mu    sync.RWMutex
	items map[string]map[domaincart.ItemID]domaincart.Item
}

func NewCartRepository() *CartRepository {
	return &CartRepository{items: make(map[string]map[domaincart.ItemID]domaincart.Item)}
}

func (r *CartRepository) ByID(ctx context.Context, userID string, id domaincart.ItemID) (*domaincart.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[userID][id]
	if !ok {
		return nil, domaincart.ErrItemNotFound
	}
	return &item, nil
}

func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]*domaincart.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domaincart.Item, 0, len(r.items[userID]))
	for _, item := range r.items[userID] {
		item := item
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *CartRepository) Save(ctx context.Context, item *domaincart.Item) error {
	if item == nil || item.UserID == "" {
		return domaincart.ErrUserRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items[item.UserID] == nil {
		r.items[item.UserID] = make(map[domaincart.ItemID]domaincart.Item)
	}
	r.items[item.UserID][item.ID] = *item
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, userID string, id domaincart.ItemID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[userID][id]; !ok {
		return domaincart.ErrItemNotFound
	}
	delete(r.items[userID], id)
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.items[userID])
	delete(r.items, userID)
	return n, nil
}

// PaymentRepository keeps intents keyed by order id with optimistic versioning.
type PaymentRepository struct {
	mu    sync.RWMutex
	items map[string]*domainpayments.Intent
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{items: make(map[string]*domainpayments.Intent)}
}

func (r *PaymentRepository) ByOrderID(ctx context.Context, orderID string) (*domainpayments.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.items[orderID]
	if !ok {
		return nil, domainpayments.ErrNotFound
	}
	return cloneIntent(in), nil
}

func (r *PaymentRepository) Save(ctx context.Context, intent *domainpayments.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.items[intent.OrderID]; ok {
		if stored.ID != intent.ID {
			return domainpayments.ErrDuplicateOrder
		}
		if stored.Version != intent.Version {
			return domainpayments.ErrStaleIntent
		}
	} else if intent.Version != 0 {
		return domainpayments.ErrStaleIntent
	}
	intent.Version++
	r.items[intent.OrderID] = cloneIntent(intent)
	return nil
}

func (r *PaymentRepository) ListByState(ctx context.Context, state domainpayments.CheckoutState, createdBefore time.Time) ([]*domainpayments.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainpayments.Intent
	for _, in := range r.items {
		if in.State == state && in.CreatedAt.Before(createdBefore) {
			out = append(out, cloneIntent(in))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneIntent(in *domainpayments.Intent) *domainpayments.Intent {
	c := *in
	c.BookingIDs = append([]domainbooking.BookingID(nil), in.BookingIDs...)
	c.EventRecorder = events.EventRecorder{}
	return &c
}

// ReviewRepository keeps reviews in memory.
type ReviewRepository struct {
	mu    sync.RWMutex
	items map[domainreviews.ReviewID]domainreviews.Review
}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{items: make(map[domainreviews.ReviewID]domainreviews.Review)}
}

func (r *ReviewRepository) ByID(ctx context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	review, ok := r.items[id]
	if !ok {
		return nil, domainreviews.ErrNotFound
	}
	return &review, nil
}

func (r *ReviewRepository) ByUserAndProperty(ctx context.Context, userID string, propertyID domainproperties.PropertyID) (*domainreviews.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, review := range r.items {
		if review.UserID == userID && review.PropertyID == propertyID {
			return &review, nil
		}
	}
	return nil, domainreviews.ErrNotFound
}

func (r *ReviewRepository) ListByProperty(ctx context.Context, propertyID domainproperties.PropertyID, limit, offset int) ([]*domainreviews.Review, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*domainreviews.Review
	for _, review := range r.items {
		if review.PropertyID == propertyID {
			review := review
			all = append(all, &review)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *ReviewRepository) Save(ctx context.Context, review *domainreviews.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.items {
		if id != review.ID && existing.UserID == review.UserID && existing.PropertyID == review.PropertyID {
			return domainreviews.ErrDuplicate
		}
	}
	c := *review
	c.EventRecorder = events.EventRecorder{}
	r.items[review.ID] = c
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domainreviews.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

var (
	_ domainproperties.Repository = (*PropertyRepository)(nil)
	_ domainbooking.Repository    = (*BookingRepository)(nil)
	_ domaincart.Repository       = (*CartRepository)(nil)
	_ domainpayments.Repository   = (*PaymentRepository)(nil)
	_ domainreviews.Repository    = (*ReviewRepository)(nil)
)
