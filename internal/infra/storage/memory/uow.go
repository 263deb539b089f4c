package memory

import (
	"context"

	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

// Store holds one instance of every in-memory repository.
type Store struct {
	Properties *PropertyRepository
	Bookings   *BookingRepository
	Cart       *CartRepository
	Payments   *PaymentRepository
	Reviews    *ReviewRepository
	Users      *UserRepository
}

func NewStore() *Store {
	return &Store{
		Properties: NewPropertyRepository(),
		Bookings:   NewBookingRepository(),
		Cart:       NewCartRepository(),
		Payments:   NewPaymentRepository(),
		Reviews:    NewReviewRepository(),
		Users:      NewUserRepository(),
	}
}

// Factory wires the store into a unit-of-work boundary. No isolation is provided;
// each repository is individually consistent and Insert is atomic per batch.
type Factory struct {
	Store *Store
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{store: f.Store}, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	store *Store
}

func (u *Unit) Properties() domainproperties.Repository { return u.store.Properties }
func (u *Unit) Bookings() domainbooking.Repository      { return u.store.Bookings }
func (u *Unit) Cart() domaincart.Repository             { return u.store.Cart }
func (u *Unit) Payments() domainpayments.Repository     { return u.store.Payments }
func (u *Unit) Reviews() domainreviews.Repository       { return u.store.Reviews }

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
