package mongo

import (
	"time"

	domainbooking "villabook/internal/domain/booking"
	domaincart "villabook/internal/domain/cart"
	domainpayments "villabook/internal/domain/payments"
	"villabook/internal/domain/pricing"
	domainproperties "villabook/internal/domain/properties"
	domainreviews "villabook/internal/domain/reviews"
	"villabook/internal/domain/shared/daterange"
	"villabook/internal/domain/shared/money"
	domainuser "villabook/internal/domain/user"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoney(m money.Money) moneyDocument { return moneyDocument{Amount: m.Amount, Currency: m.Currency} }
func (d moneyDocument) value() money.Money { return money.Money{Amount: d.Amount, Currency: d.Currency} }

type quoteDocument struct {
	Nights      int           `bson:"nights"`
	NightlyRate moneyDocument `bson:"nightly_rate"`
	Subtotal    moneyDocument `bson:"subtotal"`
	ServiceFee  moneyDocument `bson:"service_fee"`
	Total       moneyDocument `bson:"total"`
}

func newQuote(q pricing.Quote) quoteDocument {
	return quoteDocument{
		Nights:      q.Nights,
		NightlyRate: newMoney(q.NightlyRate),
		Subtotal:    newMoney(q.Subtotal),
		ServiceFee:  newMoney(q.ServiceFee),
		Total:       newMoney(q.Total),
	}
}

func (d quoteDocument) value() pricing.Quote {
	return pricing.Quote{
		Nights:      d.Nights,
		NightlyRate: d.NightlyRate.value(),
		Subtotal:    d.Subtotal.value(),
		ServiceFee:  d.ServiceFee.value(),
		Total:       d.Total.value(),
	}
}

type propertyDocument struct {
	ID          string        `bson:"_id"`
	Title       string        `bson:"title"`
	NightlyRate moneyDocument `bson:"nightly_rate"`
	MaxGuests   int           `bson:"max_guests"`
	Active      bool          `bson:"active"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

func newPropertyDocument(p *domainproperties.Property) propertyDocument {
	return propertyDocument{
		ID:          string(p.ID),
		Title:       p.Title,
		NightlyRate: newMoney(p.NightlyRate),
		MaxGuests:   p.MaxGuests,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (d propertyDocument) toAggregate() *domainproperties.Property {
	return &domainproperties.Property{
		ID:          domainproperties.PropertyID(d.ID),
		Title:       d.Title,
		NightlyRate: d.NightlyRate.value(),
		MaxGuests:   d.MaxGuests,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type bookingDocument struct {
	ID           string        `bson:"_id"`
	PropertyID   string        `bson:"property_id"`
	UserID       string        `bson:"user_id"`
	Start        time.Time     `bson:"start"`
	End          time.Time     `bson:"end"`
	Guests       int           `bson:"guests"`
	Price        quoteDocument `bson:"price"`
	Status       string        `bson:"status"`
	OrderID      string        `bson:"order_id"`
	CancelReason string        `bson:"cancel_reason,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
	Version      int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:           string(b.ID),
		PropertyID:   string(b.PropertyID),
		UserID:       b.UserID,
		Start:        b.Range.Start,
		End:          b.Range.End,
		Guests:       b.Guests,
		Price:        newQuote(b.Price),
		Status:       string(b.Status),
		OrderID:      b.OrderID,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		Version:      b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:           domainbooking.BookingID(d.ID),
		PropertyID:   domainproperties.PropertyID(d.PropertyID),
		UserID:       d.UserID,
		Range:        daterange.DateRange{Start: d.Start.UTC(), End: d.End.UTC()},
		Guests:       d.Guests,
		Price:        d.Price.value(),
		Status:       domainbooking.Status(d.Status),
		OrderID:      d.OrderID,
		CancelReason: d.CancelReason,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		Version:      d.Version,
	}
}

// nightDocument claims one night of one property. The composite _id is the exclusion key.
type nightDocument struct {
	ID         string    `bson:"_id"`
	PropertyID string    `bson:"property_id"`
	Night      time.Time `bson:"night"`
	BookingID  string    `bson:"booking_id"`
}

func nightsOf(b *domainbooking.Booking) []any {
	nights := b.Range.EachNight()
	docs := make([]any, 0, len(nights))
	for _, n := range nights {
		docs = append(docs, nightDocument{
			ID:         string(b.PropertyID) + "|" + n.Format(time.DateOnly),
			PropertyID: string(b.PropertyID),
			Night:      n,
			BookingID:  string(b.ID),
		})
	}
	return docs
}

type cartItemDocument struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	PropertyID string    `bson:"property_id"`
	Start      time.Time `bson:"start"`
	End        time.Time `bson:"end"`
	Guests     int       `bson:"guests"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func newCartItemDocument(i *domaincart.Item) cartItemDocument {
	return cartItemDocument{
		ID:         string(i.ID),
		UserID:     i.UserID,
		PropertyID: string(i.PropertyID),
		Start:      i.Range.Start,
		End:        i.Range.End,
		Guests:     i.Guests,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}

func (d cartItemDocument) toAggregate() *domaincart.Item {
	return &domaincart.Item{
		ID:         domaincart.ItemID(d.ID),
		UserID:     d.UserID,
		PropertyID: domainproperties.PropertyID(d.PropertyID),
		Range:      daterange.DateRange{Start: d.Start.UTC(), End: d.End.UTC()},
		Guests:     d.Guests,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type intentDocument struct {
	ID             string        `bson:"_id"`
	OrderID        string        `bson:"order_id"`
	UserID         string        `bson:"user_id"`
	BookingIDs     []string      `bson:"booking_ids"`
	Amount         moneyDocument `bson:"amount"`
	Status         string        `bson:"status"`
	State          string        `bson:"state"`
	Provider       string        `bson:"provider"`
	Token          string        `bson:"token"`
	RedirectURL    string        `bson:"redirect_url"`
	IdempotencyKey string        `bson:"idempotency_key,omitempty"`
	TransactionID  string        `bson:"transaction_id,omitempty"`
	PaymentType    string        `bson:"payment_type,omitempty"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
	Version        int64         `bson:"version"`
}

func newIntentDocument(in *domainpayments.Intent) intentDocument {
	ids := make([]string, 0, len(in.BookingIDs))
	for _, id := range in.BookingIDs {
		ids = append(ids, string(id))
	}
	return intentDocument{
		ID:             string(in.ID),
		OrderID:        in.OrderID,
		UserID:         in.UserID,
		BookingIDs:     ids,
		Amount:         newMoney(in.Amount),
		Status:         string(in.Status),
		State:          string(in.State),
		Provider:       in.Provider,
		Token:          in.Token,
		RedirectURL:    in.RedirectURL,
		IdempotencyKey: in.IdempotencyKey,
		TransactionID:  in.TransactionID,
		PaymentType:    in.PaymentType,
		CreatedAt:      in.CreatedAt,
		UpdatedAt:      in.UpdatedAt,
		Version:        in.Version,
	}
}

func (d intentDocument) toAggregate() *domainpayments.Intent {
	ids := make([]domainbooking.BookingID, 0, len(d.BookingIDs))
	for _, id := range d.BookingIDs {
		ids = append(ids, domainbooking.BookingID(id))
	}
	return &domainpayments.Intent{
		ID:             domainpayments.IntentID(d.ID),
		OrderID:        d.OrderID,
		UserID:         d.UserID,
		BookingIDs:     ids,
		Amount:         d.Amount.value(),
		Status:         domainpayments.Status(d.Status),
		State:          domainpayments.CheckoutState(d.State),
		Provider:       d.Provider,
		Token:          d.Token,
		RedirectURL:    d.RedirectURL,
		IdempotencyKey: d.IdempotencyKey,
		TransactionID:  d.TransactionID,
		PaymentType:    d.PaymentType,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
		Version:        d.Version,
	}
}

type reviewDocument struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	PropertyID string    `bson:"property_id"`
	Rating     int       `bson:"rating"`
	Comment    string    `bson:"comment"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func newReviewDocument(r *domainreviews.Review) reviewDocument {
	return reviewDocument{
		ID:         string(r.ID),
		UserID:     r.UserID,
		PropertyID: string(r.PropertyID),
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (d reviewDocument) toAggregate() *domainreviews.Review {
	return &domainreviews.Review{
		ID:         domainreviews.ReviewID(d.ID),
		UserID:     d.UserID,
		PropertyID: domainproperties.PropertyID(d.PropertyID),
		Rating:     d.Rating,
		Comment:    d.Comment,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	Name         string    `bson:"name"`
	PasswordHash string    `bson:"password_hash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:           string(u.ID),
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) toAggregate() *domainuser.User {
	return &domainuser.User{
		ID:           domainuser.ID(d.ID),
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		Role:         domainuser.Role(d.Role),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}
