package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/commands"
	"villabook/internal/app/dto"
	reviewsapp "villabook/internal/app/handlers/reviews"
	"villabook/internal/app/queries"
)

type ReviewHTTP interface {
	List(c *gin.Context)
	Eligibility(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type ReviewsHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

type updateReviewRequest struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

func (h ReviewsHandler) List(c *gin.Context) {
	if h.Queries == nil {
		unavailable(c)
		return
	}
	result, err := queries.Ask[reviewsapp.ListPropertyReviewsQuery, dto.ReviewCollection](c.Request.Context(), h.Queries, reviewsapp.ListPropertyReviewsQuery{
		PropertyID: c.Param("id"),
		Limit:      parseIntDefault(c.Query("limit"), 0),
		Offset:     parseIntDefault(c.Query("offset"), 0),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h ReviewsHandler) Eligibility(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Queries == nil {
		unavailable(c)
		return
	}
	result, err := queries.Ask[reviewsapp.EligibilityQuery, dto.ReviewEligibility](c.Request.Context(), h.Queries, reviewsapp.EligibilityQuery{
		UserID:     user.ID,
		PropertyID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h ReviewsHandler) Create(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := commands.Dispatch[reviewsapp.CreateReviewCommand, dto.Review](c.Request.Context(), h.Commands, reviewsapp.CreateReviewCommand{
		UserID:     user.ID,
		PropertyID: c.Param("id"),
		Rating:     req.Rating,
		Comment:    req.Comment,
		Now:        time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusCreated, result)
}

func (h ReviewsHandler) Update(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	var req updateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := commands.Dispatch[reviewsapp.UpdateReviewCommand, dto.Review](c.Request.Context(), h.Commands, reviewsapp.UpdateReviewCommand{
		UserID:   user.ID,
		ReviewID: c.Param("id"),
		Rating:   req.Rating,
		Comment:  req.Comment,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	respond(c, http.StatusOK, result)
}

func (h ReviewsHandler) Delete(c *gin.Context) {
	user, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Commands == nil {
		unavailable(c)
		return
	}
	_, err := commands.Dispatch[reviewsapp.DeleteReviewCommand, struct{}](c.Request.Context(), h.Commands, reviewsapp.DeleteReviewCommand{
		UserID:   user.ID,
		UserRole: user.Role,
		ReviewID: c.Param("id"),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

var _ ReviewHTTP = ReviewsHandler{}
