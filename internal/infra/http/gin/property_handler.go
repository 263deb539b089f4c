package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	propertiesapp "villabook/internal/app/handlers/properties"
	"villabook/internal/app/queries"
)

type PropertyHTTP interface {
	Get(c *gin.Context)
	Availability(c *gin.Context)
	Upsert(c *gin.Context)
}

type PropertyHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type availabilityQuery struct {
	Start string `form:"start" binding:"required"`
	End   string `form:"end" binding:"required"`
}

type upsertPropertyRequest struct {
	Title            string `json:"title" binding:"required"`
	NightlyRateMinor int64  `json:"nightly_rate_minor" binding:"required"`
	Currency         string `json:"currency"`
	MaxGuests        int    `json:"max_guests" binding:"required"`
	Active           *bool  `json:"active"`
}

func (h PropertyHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		unavailable(c)
		return
	}
	result, err := queries.Ask[propertiesapp.GetPropertyQuery, dto.Property](c.Request.Context(), h.Queries, propertiesapp.GetPropertyQuery{
		PropertyID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h PropertyHandler) Availability(c *gin.Context) {
	if h.Queries == nil {
		unavailable(c)
		return
	}
	var req availabilityQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := queries.Ask[propertiesapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, propertiesapp.CheckAvailabilityQuery{
		PropertyID: c.Param("id"),
		Start:      req.Start,
		End:        req.End,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h PropertyHandler) Upsert(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	var req upsertPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	result, err := commands.Dispatch[propertiesapp.UpsertPropertyCommand, dto.Property](c.Request.Context(), h.Commands, propertiesapp.UpsertPropertyCommand{
		ActorUserID:      user.ID,
		ActorUserRole:    user.Role,
		PropertyID:       c.Param("id"),
		Title:            req.Title,
		NightlyRateMinor: req.NightlyRateMinor,
		Currency:         req.Currency,
		MaxGuests:        req.MaxGuests,
		Active:           active,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

var _ PropertyHTTP = PropertyHandler{}
