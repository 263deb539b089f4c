package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/apperr"
	"villabook/internal/app/dto"
	authsvc "villabook/internal/app/services/auth"
	domainuser "villabook/internal/domain/user"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Me(c *gin.Context)
}

// AccountService is the part of the auth service the HTTP layer calls.
type AccountService interface {
	Register(ctx context.Context, params authsvc.RegisterParams) (*authsvc.AuthResult, error)
	Login(ctx context.Context, params authsvc.LoginParams) (*authsvc.AuthResult, error)
	Profile(ctx context.Context, id domainuser.ID) (*domainuser.User, error)
}

type AuthHandler struct {
	Service AccountService
	Logger  *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,max=120"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h AuthHandler) Register(c *gin.Context) {
	if h.Service == nil {
		unavailable(c)
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := h.Service.Register(c.Request.Context(), authsvc.RegisterParams{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.Logger, classifyAuthError(err))
		return
	}
	respond(c, http.StatusCreated, dto.NewAuthResponse(result.User, result.Token, result.ExpiresAt))
}

func (h AuthHandler) Login(c *gin.Context) {
	if h.Service == nil {
		unavailable(c)
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	result, err := h.Service.Login(c.Request.Context(), authsvc.LoginParams{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.Logger, classifyAuthError(err))
		return
	}
	respond(c, http.StatusOK, dto.NewAuthResponse(result.User, result.Token, result.ExpiresAt))
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requireUser(c)
	if !ok {
		return
	}
	if h.Service == nil {
		respond(c, http.StatusOK, dto.UserProfile{ID: p.ID, Email: p.Email, Role: p.Role})
		return
	}
	user, err := h.Service.Profile(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		respondError(c, h.Logger, classifyAuthError(err))
		return
	}
	respond(c, http.StatusOK, dto.MapUserProfile(user))
}

func classifyAuthError(err error) error {
	switch {
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return apperr.Authentication("invalid_credentials", "invalid credentials")
	case errors.Is(err, authsvc.ErrPasswordTooShort),
		errors.Is(err, domainuser.ErrEmailRequired),
		errors.Is(err, domainuser.ErrNameRequired):
		return apperr.Validation("invalid_registration", err)
	case errors.Is(err, domainuser.ErrEmailAlreadyUsed):
		return apperr.Conflict("email_taken", err)
	case errors.Is(err, domainuser.ErrNotFound):
		return apperr.NotFound("user_not_found", err)
	default:
		return err
	}
}

var _ AuthHTTP = AuthHandler{}
