package uow

import (
	"context"

	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Properties() domainproperties.Repository
	Bookings() domainbooking.Repository
	Cart() domaincart.Repository
	Payments() domainpayments.Repository
	Reviews() domainreviews.Repository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
