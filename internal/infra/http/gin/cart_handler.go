package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	cartapp "villabook/internal/app/handlers/cart"
	"villabook/internal/app/queries"
)

type CartHTTP interface {
	Get(c *gin.Context)
	AddItem(c *gin.Context)
	UpdateItem(c *gin.Context)
	RemoveItem(c *gin.Context)
	Clear(c *gin.Context)
}

type CartHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type addCartItemRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	Start      string `json:"start" binding:"required"`
	End        string `json:"end" binding:"required"`
	Guests     int    `json:"guests" binding:"required"`
}

type updateCartItemRequest struct {
	Start  *string `json:"start"`
	End    *string `json:"end"`
	Guests *int    `json:"guests"`
}

func (h CartHandler) Get(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Queries == nil {
		unavailable(c)
		return
	}
	result, err := queries.Ask[cartapp.GetCartQuery, dto.Cart](c.Request.Context(), h.Queries, cartapp.GetCartQuery{UserID: user.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h CartHandler) AddItem(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := commands.Dispatch[cartapp.AddItemCommand, dto.CartItem](c.Request.Context(), h.Commands, cartapp.AddItemCommand{
		UserID:     user.ID,
		PropertyID: req.PropertyID,
		Start:      req.Start,
		End:        req.End,
		Guests:     req.Guests,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h CartHandler) UpdateItem(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := commands.Dispatch[cartapp.UpdateItemCommand, dto.CartItem](c.Request.Context(), h.Commands, cartapp.UpdateItemCommand{
		UserID: user.ID,
		ItemID: c.Param("id"),
		Start:  req.Start,
		End:    req.End,
		Guests: req.Guests,
		Now:    time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h CartHandler) RemoveItem(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	result, err := commands.Dispatch[cartapp.RemoveItemCommand, dto.CartCleared](c.Request.Context(), h.Commands, cartapp.RemoveItemCommand{
		UserID: user.ID,
		ItemID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h CartHandler) Clear(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	result, err := commands.Dispatch[cartapp.ClearCartCommand, dto.CartCleared](c.Request.Context(), h.Commands, cartapp.ClearCartCommand{UserID: user.ID})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

var _ CartHTTP = CartHandler{}
