package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"villabook/internal/app/uow"
	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Repositories join the transaction through the session carried by ctx.
type Factory struct {
	DB *mongo.Database
}

// Begin starts a session with a snapshot transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:    session,
		properties: NewPropertyRepository(f.DB),
		bookings:   NewBookingRepository(f.DB),
		cart:       NewCartRepository(f.DB),
		payments:   NewPaymentRepository(f.DB),
		reviews:    NewReviewRepository(f.DB),
	}, nil
}

type Unit struct {
	session mongo.Session

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
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
