package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
	"villabook/internal/domain/shared/daterange"
)

type PropertyRepository struct {
	col *mongo.Collection
}

func NewPropertyRepository(db *mongo.Database) *PropertyRepository {
	return &PropertyRepository{col: db.Collection(colProperties)}
}

func (r *PropertyRepository) ByID(ctx context.Context, id domainproperties.PropertyID) (*domainproperties.Property, error) {
	var doc propertyDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainproperties.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *PropertyRepository) Save(ctx context.Context, p *domainproperties.Property) error {
	doc := newPropertyDocument(p)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

// BookingRepository keeps one booking_nights document per claimed night. Its _id is
// (property, night), so a second claim on the same night fails with a duplicate key
// inside the same transaction as the booking insert.
type BookingRepository struct {
	col    *mongo.Collection
	nights *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(colBookings), nights: db.Collection(colBookingNight)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) FindBlocking(ctx context.Context, propertyID domainproperties.PropertyID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{
		"property_id": string(propertyID),
		"status":      bson.M{"$ne": string(domainbooking.StatusCancelled)},
		"start":       bson.M{"$lt": dr.End},
		"end":         bson.M{"$gt": dr.Start},
	}, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
}

func (r *BookingRepository) Insert(ctx context.Context, bookings []*domainbooking.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	docs := make([]any, 0, len(bookings))
	var nights []any
	for _, b := range bookings {
		doc := newBookingDocument(b)
		doc.Version = 1
		docs = append(docs, doc)
		if b.Status.Blocks() {
			nights = append(nights, nightsOf(b)...)
		}
	}
	if len(nights) > 0 {
		if _, err := r.nights.InsertMany(ctx, nights); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("%w: %v", domainbooking.ErrOverlap, err)
			}
			return err
		}
	}
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		return err
	}
	for _, b := range bookings {
		b.Version = 1
	}
	return nil
}

// Save persists state changes with an optimistic version check. Cancelling releases
// the nights the booking held.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrStaleBooking
	}
	if !b.Status.Blocks() {
		if _, err := r.nights.DeleteMany(ctx, bson.M{"booking_id": doc.ID}); err != nil {
			return err
		}
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (r *BookingRepository) ListByOrder(ctx context.Context, orderID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"order_id": orderID}, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
}

func (r *BookingRepository) ListCreatedBefore(ctx context.Context, status domainbooking.Status, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{
		"status":     string(status),
		"created_at": bson.M{"$lt": cutoff},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *BookingRepository) ListEndedBy(ctx context.Context, status domainbooking.Status, day time.Time) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{
		"status": string(status),
		"end":    bson.M{"$lte": daterange.Day(day)},
	}, options.Find().SetSort(bson.D{{Key: "end", Value: 1}}))
}

func (r *BookingRepository) HasCompletedStay(ctx context.Context, userID string, propertyID domainproperties.PropertyID) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{
		"user_id":     userID,
		"property_id": string(propertyID),
		"status":      string(domainbooking.StatusCompleted),
	}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	docs, err := findAll[bookingDocument](ctx, r.col, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type CartRepository struct {
	col *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{col: db.Collection(colCartItems)}
}

func (r *CartRepository) ByID(ctx context.Context, userID string, id domaincart.ItemID) (*domaincart.Item, error) {
	var doc cartItemDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id), "user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincart.ErrItemNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]*domaincart.Item, error) {
	docs, err := findAll[cartItemDocument](ctx, r.col, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*domaincart.Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

func (r *CartRepository) Save(ctx context.Context, item *domaincart.Item) error {
	doc := newCartItemDocument(item)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "user_id": doc.UserID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *CartRepository) Delete(ctx context.Context, userID string, id domaincart.ItemID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id), "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domaincart.ErrItemNotFound
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) (int, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

type PaymentRepository struct {
	col *mongo.Collection
}

func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{col: db.Collection(colIntents)}
}

func (r *PaymentRepository) ByOrderID(ctx context.Context, orderID string) (*domainpayments.Intent, error) {
	var doc intentDocument
	if err := r.col.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainpayments.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// Save inserts a new intent (version 0) or replaces the stored one if its version
// has not moved since it was read.
func (r *PaymentRepository) Save(ctx context.Context, in *domainpayments.Intent) error {
	doc := newIntentDocument(in)
	doc.Version = in.Version + 1
	if in.Version == 0 {
		if _, err := r.col.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domainpayments.ErrDuplicateOrder
			}
			return err
		}
		in.Version = doc.Version
		return nil
	}
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": in.Version}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainpayments.ErrStaleIntent
	}
	in.Version = doc.Version
	return nil
}

func (r *PaymentRepository) ListByState(ctx context.Context, state domainpayments.CheckoutState, createdBefore time.Time) ([]*domainpayments.Intent, error) {
	docs, err := findAll[intentDocument](ctx, r.col, bson.M{
		"state":      string(state),
		"created_at": bson.M{"$lt": createdBefore},
	}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := make([]*domainpayments.Intent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, nil
}

type ReviewRepository struct {
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{col: db.Collection(colReviews)}
}

func (r *ReviewRepository) ByID(ctx context.Context, id domainreviews.ReviewID) (*domainreviews.Review, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ReviewRepository) ByUserAndProperty(ctx context.Context, userID string, propertyID domainproperties.PropertyID) (*domainreviews.Review, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "property_id": string(propertyID)})
}

func (r *ReviewRepository) ListByProperty(ctx context.Context, propertyID domainproperties.PropertyID, limit, offset int) ([]*domainreviews.Review, int, error) {
	filter := bson.M{"property_id": string(propertyID)}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	docs, err := findAll[reviewDocument](ctx, r.col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*domainreviews.Review, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toAggregate())
	}
	return out, int(total), nil
}

func (r *ReviewRepository) Save(ctx context.Context, review *domainreviews.Review) error {
	doc := newReviewDocument(review)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return domainreviews.ErrDuplicate
	}
	return err
}

func (r *ReviewRepository) Delete(ctx context.Context, id domainreviews.ReviewID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainreviews.ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) findOne(ctx context.Context, filter bson.M) (*domainreviews.Review, error) {
	var doc reviewDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreviews.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

var (
	_ domainproperties.Repository = (*PropertyRepository)(nil)
	_ domainbooking.Repository    = (*BookingRepository)(nil)
	_ domaincart.Repository       = (*CartRepository)(nil)
	_ domainpayments.Repository   = (*PaymentRepository)(nil)
	_ domainreviews.Repository    = (*ReviewRepository)(nil)
)
