package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "villabook/internal/domain/auth"
	domainuser "villabook/internal/domain/user"
)

var ErrSecretRequired = errors.New("token: signing secret required")

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 tokens carrying sub, email and role.
type JWTIssuer struct {
	Secret []byte
	Issuer string
}

func (j JWTIssuer) Issue(grant domainauth.Grant) (string, error) {
	if len(j.Secret) == 0 {
		return "", ErrSecretRequired
	}
	if err := grant.Validate(); err != nil {
		return "", err
	}
	now := grant.Now
	if now.IsZero() {
		now = time.Now()
	}
	c := claims{
		Email: grant.Email,
		Role:  string(grant.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(grant.UserID),
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(grant.ExpiresAt()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.Secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (j JWTIssuer) Parse(token string) (domainauth.Identity, error) {
	if len(j.Secret) == 0 {
		return domainauth.Identity{}, ErrSecretRequired
	}
	var c claims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return j.Secret, nil }, opts...)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: %v", domainauth.ErrTokenInvalid, err)
	}
	if c.Subject == "" {
		return domainauth.Identity{}, domainauth.ErrTokenInvalid
	}
	role, err := domainuser.ParseRole(c.Role)
	if err != nil {
		return domainauth.Identity{}, domainauth.ErrTokenInvalid
	}
	identity := domainauth.Identity{UserID: domainuser.ID(c.Subject), Email: c.Email, Role: role}
	if c.ExpiresAt != nil {
		identity.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return identity, nil
}
