package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	gin "github.com/gin-gonic/gin"

	"villabook/internal/app/apperr"
	domainauth "villabook/internal/domain/auth"
)

const principalContextKey = "villabook.principal"

type principal struct {
	ID    string
	Email string
	Role  string
	Token string
}

// TokenResolver turns a bearer token into the caller identity.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (domainauth.Identity, error)
}

// AuthMiddleware attaches the caller to the request when a valid bearer token is present.
// Routes decide on their own whether a caller is required.
type AuthMiddleware struct {
	Resolver TokenResolver
	Logger   *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Resolver == nil {
		c.Next()
		return
	}
	identity, err := m.Resolver.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrTokenInvalid) && m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:    string(identity.UserID),
		Email: identity.Email,
		Role:  string(identity.Role),
		Token: token,
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requireUser writes 401 and returns false when the request carries no valid token.
func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok || p.ID == "" {
		respondError(c, nil, apperr.Authentication("auth_required", "authentication required"))
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
