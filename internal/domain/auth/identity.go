package auth

import (
	"errors"
	"strings"
	"time"

	"villabook/internal/domain/user"
)

var (
	ErrTokenRequired = errors.New("auth: token is required")
	ErrTokenInvalid  = errors.New("auth: token is invalid or expired")
	ErrTTLInvalid    = errors.New("auth: ttl must be positive")
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID    user.ID
	Email     string
	Role      user.Role
	ExpiresAt time.Time
}

func (i Identity) IsAdmin() bool {
	return i.Role == user.RoleAdmin
}

// Grant describes a token to be issued for a user.
type Grant struct {
	UserID user.ID
	Email  string
	Role   user.Role
	TTL    time.Duration
	Now    time.Time
}

func (g Grant) Validate() error {
	if strings.TrimSpace(string(g.UserID)) == "" {
		return user.ErrIDRequired
	}
	if g.TTL <= 0 {
		return ErrTTLInvalid
	}
	return nil
}

func (g Grant) ExpiresAt() time.Time {
	now := g.Now
	if now.IsZero() {
		now = time.Now()
	}
	return now.UTC().Add(g.TTL)
}
