package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory opens one SQL transaction per unit. Repositories and the outbox store pick
// the transaction up from ctx.
type Factory struct {
	DB *gorm.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{
		tx:         tx,
		properties: NewPropertyRepository(f.DB),
		bookings:   NewBookingRepository(f.DB),
		cart:       NewCartRepository(f.DB),
		payments:   NewPaymentRepository(f.DB),
		reviews:    NewReviewRepository(f.DB),
	}, nil
}

type Unit struct {
	tx *gorm.DB

	properties *PropertyRepository
	bookings   *BookingRepository
	cart       *CartRepository
	payments   *PaymentRepository
	reviews    *ReviewRepository
}

func (u *Unit) Properties() domainproperties.Repository { return u.properties }
func (u *Unit) Bookings() domainbooking.Repository      { return u.bookings }
func (u *Unit) Cart() domaincart.Repository             { return u.cart }
func (u *Unit) Payments() domainpayments.Repository     { return u.payments }
func (u *Unit) Reviews() domainreviews.Repository       { return u.reviews }

func (u *Unit) Commit(ctx context.Context) error {
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(ctx context.Context) error {
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}

var _ uow.UoWFactory = Factory{}
