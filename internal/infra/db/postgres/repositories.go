package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
	"villabook/internal/domain/shared/daterange"
	domainuser "villabook/internal/domain/user"
)

type PropertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	var m propertyModel
	if err := conn(ctx, r.db).Take(&m, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, domainproperties.ErrNotFound)
	}
	return m.toAggregate(), nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *domainproperties.Property) error {
	m := newPropertyModel(p)
	return conn(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// BookingRepository relies on the bookings_no_overlap constraint; a colliding insert
// fails with SQLSTATE 23P01 and the whole batch rolls back with the transaction.
type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var m bookingModel
	if err := conn(ctx, r.db).Take(&m, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, domainbooking.ErrBookingNotFound)
	}
	return m.toAggregate(), nil
}

func (r *BookingRepository) FindBlocking(ctx context.Context, propertyID domainproperties.PropertyID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).
		Where("property_id = ? AND status <> ?", string(propertyID), string(domainbooking.StatusCancelled)).
		Where("start_date < ? AND end_date > ?", dr.End, dr.Start).
		Order("start_date"))
}

func (r *BookingRepository) Insert(ctx context.Context, bookings []*domainbooking.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	models := make([]bookingModel, 0, len(bookings))
	for _, b := range bookings {
		m := newBookingModel(b)
		m.Version = 1
		models = append(models, m)
	}
	if err := conn(ctx, r.db).Create(&models).Error; err != nil {
		if hasCode(err, codeExclusionViolation) {
			return fmt.Errorf("%w: %v", domainbooking.ErrOverlap, err)
		}
		return err
	}
	for _, b := range bookings {
		b.Version = 1
	}
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	res := conn(ctx, r.db).Model(&bookingModel{}).
		Where("id = ? AND version = ?", string(b.ID), b.Version).
		Updates(map[string]any{
			"status":        string(b.Status),
			"cancel_reason": b.CancelReason,
			"guests":        b.Guests,
			"updated_at":    b.UpdatedAt,
			"version":       b.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainbooking.ErrStaleBooking
	}
	b.Version++
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC"))
}

func (r *BookingRepository) ListByOrder(ctx context.Context, orderID string) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).Where("order_id = ?", orderID).Order("start_date"))
}

func (r *BookingRepository) ListCreatedBefore(ctx context.Context, status domainbooking.Status, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).Where("status = ? AND created_at < ?", string(status), cutoff).Order("created_at"))
}

func (r *BookingRepository) ListEndedBy(ctx context.Context, status domainbooking.Status, day time.Time) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).Where("status = ? AND end_date <= ?", string(status), daterange.Day(day)).Order("end_date"))
}

func (r *BookingRepository) HasCompletedStay(ctx context.Context, userID string, propertyID domainproperties.PropertyID) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&bookingModel{}).
		Where("user_id = ? AND property_id = ? AND status = ?", userID, string(propertyID), string(domainbooking.StatusCompleted)).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

func (r *BookingRepository) find(q *gorm.DB) ([]*domainbooking.Booking, error) {
	var models []bookingModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAggregate())
	}
	return out, nil
}

type CartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) ByID(ctx context.Context, userID string, id domaincart.ItemID) (*domaincart.Item, error) {
	var m cartItemModel
	if err := conn(ctx, r.db).Take(&m, "id = ? AND user_id = ?", string(id), userID).Error; err != nil {
		return nil, notFound(err, domaincart.ErrItemNotFound)
	}
	return m.toAggregate(), nil
}

func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]*domaincart.Item, error) {
	var models []cartItemModel
	if err := conn(ctx, r.db).Where("user_id = ?", userID).Order("created_at, id").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domaincart.Item, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAggregate())
	}
	return out, nil
}

func (r *CartRepository) Save(ctx context.Context, item *domaincart.Item) error {
	m := newCartItemModel(item)
	return conn(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

func (r *CartRepository) Delete(ctx context.Context, userID string, id domaincart.ItemID) error {
	res := conn(ctx, r.db).Where("id = ? AND user_id = ?", string(id), userID).Delete(&cartItemModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domaincart.ErrItemNotFound
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) (int, error) {
	res := conn(ctx, r.db).Where("user_id = ?", userID).Delete(&cartItemModel{})
	return int(res.RowsAffected), res.Error
}

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) ByOrderID(ctx context.Context, orderID string) (*domainpayments.Intent, error) {
	var m intentModel
	if err := conn(ctx, r.db).Take(&m, "order_id = ?", orderID).Error; err != nil {
		return nil, notFound(err, domainpayments.ErrNotFound)
	}
	return m.toAggregate(), nil
}

func (r *PaymentRepository) Save(ctx context.Context, in *domainpayments.Intent) error {
	m := newIntentModel(in)
	m.Version = in.Version + 1
	if in.Version == 0 {
		if err := conn(ctx, r.db).Create(&m).Error; err != nil {
			if hasCode(err, codeUniqueViolation) {
				return domainpayments.ErrDuplicateOrder
			}
			return err
		}
		in.Version = m.Version
		return nil
	}
	res := conn(ctx, r.db).Model(&intentModel{}).
		Where("id = ? AND version = ?", m.ID, in.Version).
		Updates(map[string]any{
			"status":         m.Status,
			"state":          m.State,
			"transaction_id": m.TransactionID,
			"payment_type":   m.PaymentType,
			"updated_at":     m.UpdatedAt,
			"version":        m.Version,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainpayments.ErrStaleIntent
	}
	in.Version = m.Version
	return nil
}

func (r *PaymentRepository) ListByState(ctx context.Context, state domainpayments.CheckoutState, createdBefore time.Time) ([]*domainpayments.Intent, error) {
	var models []intentModel
	err := conn(ctx, r.db).
		Where("state = ? AND created_at < ?", string(state), createdBefore).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]*domainpayments.Intent, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAggregate())
	}
	return out, nil
}

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) ByID(ctx context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	var m reviewModel
	if err := conn(ctx, r.db).Take(&m, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, domainreviews.ErrNotFound)
	}
	return m.toAggregate(), nil
}

func (r *ReviewRepository) ByUserAndProperty(ctx context.Context, userID string, propertyID domainproperties.PropertyID) (*domainreviews.Review, error) {
	var m reviewModel
	if err := conn(ctx, r.db).Take(&m, "user_id = ? AND property_id = ?", userID, string(propertyID)).Error; err != nil {
		return nil, notFound(err, domainreviews.ErrNotFound)
	}
	return m.toAggregate(), nil
}

func (r *ReviewRepository) ListByProperty(ctx context.Context, propertyID domainproperties.PropertyID, limit, offset int) ([]*domainreviews.Review, int, error) {
	var total int64
	q := conn(ctx, r.db).Model(&reviewModel{}).Where("property_id = ?", string(propertyID))
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []reviewModel
	err := conn(ctx, r.db).
		Where("property_id = ?", string(propertyID)).
		Order("created_at DESC, id").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domainreviews.Review, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAggregate())
	}
	return out, int(total), nil
}

func (r *ReviewRepository) Save(ctx context.Context, review *domainreviews.Review) error {
	m := newReviewModel(review)
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
	}).Create(&m).Error
	if hasCode(err, codeUniqueViolation) {
		return domainreviews.ErrDuplicate
	}
	return err
}

func (r *ReviewRepository) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	res := conn(ctx, r.db).Where("id = ?", string(id)).Delete(&reviewModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainreviews.ErrNotFound
	}
	return nil
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var m userModel
	if err := conn(ctx, r.db).Take(&m, "id = ?", string(id)).Error; err != nil {
		return nil, notFound(err, domainuser.ErrNotFound)
	}
	return m.toAggregate(), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	var m userModel
	if err := conn(ctx, r.db).Take(&m, "email = ?", domainuser.NormalizeEmail(email)).Error; err != nil {
		return nil, notFound(err, domainuser.ErrNotFound)
	}
	return m.toAggregate(), nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	m := newUserModel(u)
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "role", "updated_at"}),
	}).Create(&m).Error
	if hasCode(err, codeUniqueViolation) {
		return domainuser.ErrEmailAlreadyUsed
	}
	return err
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

var (
	_ domainproperties.Repository = (*PropertyRepository)(nil)
	_ domainbooking.Repository    = (*BookingRepository)(nil)
	_ domaincart.Repository       = (*CartRepository)(nil)
	_ domainpayments.Repository   = (*PaymentRepository)(nil)
	_ domainreviews.Repository    = (*ReviewRepository)(nil)
	_ domainuser.Repository       = (*UserRepository)(nil)
)
