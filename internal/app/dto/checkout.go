package dto

// CheckoutResult is returned by checkout and replayed verbatim for a repeated idempotency key.
type CheckoutResult struct {
	OrderID      string   `json:"order_id"`
	PaymentToken string   `json:"payment_token"`
	RedirectURL  string   `json:"redirect_url"`
	Provider     string   `json:"provider"`
	Amount       MoneyDTO `json:"amount"`
	BookingIDs   []string `json:"booking_ids"`
	State        string   `json:"state"`
}

// ReconcileResult reports what a payment notification changed.
type ReconcileResult struct {
	OrderID        string   `json:"order_id"`
	Status         string   `json:"status"`
	State          string   `json:"state"`
	Applied        bool     `json:"applied"`
	BookingIDs     []string `json:"booking_ids"`
	CartItemsFreed int      `json:"cart_items_cleared"`
	// NeedsRefund is set when a payment succeeded after its bookings were released.
	NeedsRefund    bool     `json:"needs_refund,omitempty"`
}

// SweepResult summarizes a batch run over bookings.
type SweepResult struct {
	Examined int      `json:"examined"`
	Changed  int      `json:"changed"`
	Orders   []string `json:"orders,omitempty"`
}
