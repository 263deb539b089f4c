package postgres

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

type propertyModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Title      string    `gorm:"not null"`
	RateAmount int64     `gorm:"not null"`
	Currency   string    `gorm:"size:3;not null"`
	MaxGuests  int       `gorm:"not null"`
	Active     bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}

func (propertyModel) TableName() string { return "properties" }

func newPropertyModel(p *domainproperties.Property) propertyModel {
	return propertyModel{
		ID:         string(p.ID),
		Title:      p.Title,
		RateAmount: p.NightlyRate.Amount,
		Currency:   p.NightlyRate.Currency,
		MaxGuests:  p.MaxGuests,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (m propertyModel) toAggregate() *domainproperties.Property {
	return &domainproperties.Property{
		ID:          domainproperties.PropertyID(m.ID),
		Title:       m.Title,
		NightlyRate: money.Money{Amount: m.RateAmount, Currency: m.Currency},
		MaxGuests:   m.MaxGuests,
		Active:      m.Active,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// bookingModel carries the exclusion constraint added in Migrate; start/end are
// half-open dates.
type bookingModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	PropertyID   string    `gorm:"size:64;not null;index:idx_bookings_property_start,priority:1"`
	UserID       string    `gorm:"size:64;not null;index"`
	StartDate    time.Time `gorm:"type:date;not null;index:idx_bookings_property_start,priority:2"`
	EndDate      time.Time `gorm:"type:date;not null"`
	Guests       int       `gorm:"not null"`
	Nights       int       `gorm:"not null"`
	RateAmount   int64     `gorm:"not null"`
	Subtotal     int64     `gorm:"not null"`
	ServiceFee   int64     `gorm:"not null"`
	Total        int64     `gorm:"not null"`
	Currency     string    `gorm:"size:3;not null"`
	Status       string    `gorm:"size:16;not null;index:idx_bookings_status_created,priority:1"`
	OrderID      string    `gorm:"size:64;not null;index"`
	CancelReason string    `gorm:"size:64"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false;index:idx_bookings_status_created,priority:2"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
	Version      int64     `gorm:"not null"`
}

func (bookingModel) TableName() string { return "bookings" }

func newBookingModel(b *domainbooking.Booking) bookingModel {
	return bookingModel{
		ID:           string(b.ID),
		PropertyID:   string(b.PropertyID),
		UserID:       b.UserID,
		StartDate:    b.Range.Start,
		EndDate:      b.Range.End,
		Guests:       b.Guests,
		Nights:       b.Price.Nights,
		RateAmount:   b.Price.NightlyRate.Amount,
		Subtotal:     b.Price.Subtotal.Amount,
		ServiceFee:   b.Price.ServiceFee.Amount,
		Total:        b.Price.Total.Amount,
		Currency:     b.Price.Total.Currency,
		Status:       string(b.Status),
		OrderID:      b.OrderID,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		Version:      b.Version,
	}
}

func (m bookingModel) toAggregate() *domainbooking.Booking {
	amount := func(v int64) money.Money { return money.Money{Amount: v, Currency: m.Currency} }
	return &domainbooking.Booking{
		ID:         domainbooking.BookingID(m.ID),
		PropertyID: domainproperties.PropertyID(m.PropertyID),
		UserID:     m.UserID,
		Range:      daterange.DateRange{Start: daterange.Day(m.StartDate), End: daterange.Day(m.EndDate)},
		Guests:     m.Guests,
		Price: pricing.Quote{
			Nights:      m.Nights,
			NightlyRate: amount(m.RateAmount),
			Subtotal:    amount(m.Subtotal),
			ServiceFee:  amount(m.ServiceFee),
			Total:       amount(m.Total),
		},
		Status:       domainbooking.Status(m.Status),
		OrderID:      m.OrderID,
		CancelReason: m.CancelReason,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
		Version:      m.Version,
	}
}

type cartItemModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	UserID     string    `gorm:"size:64;not null;index"`
	PropertyID string    `gorm:"size:64;not null"`
	StartDate  time.Time `gorm:"type:date;not null"`
	EndDate    time.Time `gorm:"type:date;not null"`
	Guests     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}

func (cartItemModel) TableName() string { return "cart_items" }

func newCartItemModel(i *domaincart.Item) cartItemModel {
	return cartItemModel{
		ID:         string(i.ID),
		UserID:     i.UserID,
		PropertyID: string(i.PropertyID),
		StartDate:  i.Range.Start,
		EndDate:    i.Range.End,
		Guests:     i.Guests,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}

func (m cartItemModel) toAggregate() *domaincart.Item {
	return &domaincart.Item{
		ID:         domaincart.ItemID(m.ID),
		UserID:     m.UserID,
		PropertyID: domainproperties.PropertyID(m.PropertyID),
		Range:      daterange.DateRange{Start: daterange.Day(m.StartDate), End: daterange.Day(m.EndDate)},
		Guests:     m.Guests,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type intentModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	OrderID        string    `gorm:"size:64;not null;uniqueIndex"`
	UserID         string    `gorm:"size:64;not null"`
	BookingIDs     []string  `gorm:"serializer:json;type:jsonb;not null"`
	Amount         int64     `gorm:"not null"`
	Currency       string    `gorm:"size:3;not null"`
	Status         string    `gorm:"size:32;not null"`
	State          string    `gorm:"size:32;not null;index:idx_intents_state_created,priority:1"`
	Provider       string    `gorm:"size:32;not null"`
	Token          string    `gorm:"type:text"`
	RedirectURL    string    `gorm:"type:text"`
	IdempotencyKey string    `gorm:"size:128"`
	TransactionID  string    `gorm:"size:128"`
	PaymentType    string    `gorm:"size:64"`
	CreatedAt      time.Time `gorm:"autoCreateTime:false;index:idx_intents_state_created,priority:2"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
	Version        int64     `gorm:"not null"`
}

func (intentModel) TableName() string { return "payment_intents" }

func newIntentModel(in *domainpayments.Intent) intentModel {
	ids := make([]string, 0, len(in.BookingIDs))
	for _, id := range in.BookingIDs {
		ids = append(ids, string(id))
	}
	return intentModel{
		ID:             string(in.ID),
		OrderID:        in.OrderID,
		UserID:         in.UserID,
		BookingIDs:     ids,
		Amount:         in.Amount.Amount,
		Currency:       in.Amount.Currency,
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

func (m intentModel) toAggregate() *domainpayments.Intent {
	ids := make([]domainbooking.BookingID, 0, len(m.BookingIDs))
	for _, id := range m.BookingIDs {
		ids = append(ids, domainbooking.BookingID(id))
	}
	return &domainpayments.Intent{
		ID:             domainpayments.IntentID(m.ID),
		OrderID:        m.OrderID,
		UserID:         m.UserID,
		BookingIDs:     ids,
		Amount:         money.Money{Amount: m.Amount, Currency: m.Currency},
		Status:         domainpayments.Status(m.Status),
		State:          domainpayments.CheckoutState(m.State),
		Provider:       m.Provider,
		Token:          m.Token,
		RedirectURL:    m.RedirectURL,
		IdempotencyKey: m.IdempotencyKey,
		TransactionID:  m.TransactionID,
		PaymentType:    m.PaymentType,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		Version:        m.Version,
	}
}

type reviewModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	UserID     string    `gorm:"size:64;not null;uniqueIndex:idx_reviews_user_property,priority:1"`
	PropertyID string    `gorm:"size:64;not null;uniqueIndex:idx_reviews_user_property,priority:2;index"`
	Rating     int       `gorm:"not null"`
	Comment    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}

func (reviewModel) TableName() string { return "reviews" }

func newReviewModel(r *domainreviews.Review) reviewModel {
	return reviewModel{
		ID:         string(r.ID),
		UserID:     r.UserID,
		PropertyID: string(r.PropertyID),
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (m reviewModel) toAggregate() *domainreviews.Review {
	return &domainreviews.Review{
		ID:         domainreviews.ReviewID(m.ID),
		UserID:     m.UserID,
		PropertyID: domainproperties.PropertyID(m.PropertyID),
		Rating:     m.Rating,
		Comment:    m.Comment,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type userModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Email        string    `gorm:"size:320;not null;uniqueIndex"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"size:16;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (userModel) TableName() string { return "users" }

func newUserModel(u *domainuser.User) userModel {
	return userModel{
		ID:           string(u.ID),
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m userModel) toAggregate() *domainuser.User {
	return &domainuser.User{
		ID:           domainuser.ID(m.ID),
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         domainuser.Role(m.Role),
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

type outboxModel struct {
	ID            string            `gorm:"primaryKey;size:64"`
	Name          string            `gorm:"size:128;not null"`
	Payload       []byte            `gorm:"not null"`
	OccurredAt    time.Time         `gorm:"not null"`
	Aggregate     string            `gorm:"size:128"`
	Headers       map[string]string `gorm:"serializer:json;type:jsonb"`
	State         string            `gorm:"size:16;not null;index:idx_outbox_due,priority:1"`
	Attempts      int               `gorm:"not null"`
	NextAttemptAt time.Time         `gorm:"not null;index:idx_outbox_due,priority:2"`
	ClaimedBy     string            `gorm:"size:64"`
	ClaimedAt     *time.Time        `gorm:"index"`
	SentAt        *time.Time        `gorm:"column:sent_at"`
	LastError     string            `gorm:"type:text"`
	CreatedAt     time.Time         `gorm:"not null"`
}

func (outboxModel) TableName() string { return "outbox_records" }

type idempotencyModel struct {
	Key        string    `gorm:"primaryKey;size:255"`
	Payload    []byte    `gorm:"type:bytea"`
	ErrorKind  string    `gorm:"size:32"`
	ErrorCode  string    `gorm:"size:64"`
	Error      string    `gorm:"type:text"`
	OccurredAt time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (idempotencyModel) TableName() string { return "idempotency_records" }

type inboxModel struct {
	EventID    string    `gorm:"primaryKey;size:64"`
	Consumer   string    `gorm:"primaryKey;size:64"`
	ReceivedAt time.Time `gorm:"not null"`
}

func (inboxModel) TableName() string { return "inbox_records" }
