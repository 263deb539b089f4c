package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	bookingapp "villabook/internal/app/handlers/booking"
	checkoutapp "villabook/internal/app/handlers/checkout"
	"villabook/internal/app/queries"
)

const idempotencyHeader = "Idempotency-Key"

type BookingHTTP interface {
	Checkout(c *gin.Context)
	List(c *gin.Context)
	Create(c *gin.Context)
	Cancel(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	Start      string `json:"start" binding:"required"`
	End        string `json:"end" binding:"required"`
	Guests     int    `json:"guests" binding:"required"`
}

// Checkout turns the caller's cart into pending bookings and a payment transaction.
func (h BookingHandler) Checkout(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	result, err := commands.Dispatch[checkoutapp.CheckoutCommand, *dto.CheckoutResult](c.Request.Context(), h.Commands, checkoutapp.CheckoutCommand{
		UserID:          user.ID,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
		Now:             time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h BookingHandler) List(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Queries == nil {
		unavailable(c)
		return
	}
	result, err := queries.Ask[bookingapp.ListMyBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, bookingapp.ListMyBookingsQuery{
		UserID: user.ID,
		Status: c.Query("status"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.CheckoutResult](c.Request.Context(), h.Commands, bookingapp.CreateBookingCommand{
		UserID:          user.ID,
		PropertyID:      req.PropertyID,
		Start:           req.Start,
		End:             req.End,
		Guests:          req.Guests,
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
		Now:             time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, dto.BookingSummary](c.Request.Context(), h.Commands, bookingapp.CancelBookingCommand{
		UserID:    user.ID,
		BookingID: c.Param("id"),
		Now:       time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
