package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"villabook/internal/app/policies"
	domainauth "villabook/internal/domain/auth"
	domainuser "villabook/internal/domain/user"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrPasswordTooShort   = errors.New("auth: password must be at least 8 characters")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Issue(grant domainauth.Grant) (string, error)
	Parse(token string) (domainauth.Identity, error)
}

type Service struct {
	Users     domainuser.Repository
	Passwords PasswordHasher
	Tokens    TokenIssuer
	TokenTTL  time.Duration
	Logger    *slog.Logger
}

type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

type LoginParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	User      *domainuser.User
	Token     string
	ExpiresAt time.Time
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainuser.NormalizeEmail(params.Email)
	if email == "" {
		return nil, domainuser.ErrEmailRequired
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, domainuser.ErrNameRequired
	}
	if err := s.validatePassword(params.Password); err != nil {
		return nil, err
	}
	if _, err := s.Users.ByEmail(ctx, email); err == nil {
		return nil, domainuser.ErrEmailAlreadyUsed
	} else if !errors.Is(err, domainuser.ErrNotFound) {
		return nil, err
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	user, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        email,
		Name:         params.Name,
		PasswordHash: hash,
		Role:         domainuser.RoleUser,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Save(ctx, user); err != nil {
		return nil, err
	}
	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user registered", "user_id", user.ID, "email", user.Email, "role", user.Role)
	}
	return result, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainuser.NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.Passwords.Compare(user.PasswordHash, params.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user authenticated", "user_id", user.ID)
	}
	return result, nil
}

// ResolveToken verifies a bearer token. The user must still exist; the role is taken
// from the stored user so demotions apply before the token expires.
func (s *Service) ResolveToken(ctx context.Context, token string) (domainauth.Identity, error) {
	if err := s.ensureDependencies(); err != nil {
		return domainauth.Identity{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domainauth.Identity{}, domainauth.ErrTokenRequired
	}
	identity, err := s.Tokens.Parse(token)
	if err != nil {
		return domainauth.Identity{}, err
	}
	user, err := s.Users.ByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return domainauth.Identity{}, domainauth.ErrTokenInvalid
		}
		return domainauth.Identity{}, err
	}
	identity.Email = user.Email
	identity.Role = user.Role
	return identity, nil
}

func (s *Service) Profile(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	if s.Users == nil {
		return nil, errors.New("auth: user repository required")
	}
	return s.Users.ByID(ctx, id)
}

// Contact resolves the payment customer of a user.
func (s *Service) Contact(ctx context.Context, userID string) (policies.Customer, error) {
	user, err := s.Profile(ctx, domainuser.ID(userID))
	if err != nil {
		return policies.Customer{}, err
	}
	return policies.Customer{ID: string(user.ID), Email: user.Email, Name: user.Name}, nil
}

func (s *Service) issue(user *domainuser.User) (*AuthResult, error) {
	grant := domainauth.Grant{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		TTL:    s.tokenTTL(),
		Now:    time.Now(),
	}
	token, err := s.Tokens.Issue(grant)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: grant.ExpiresAt()}, nil
}

func (s *Service) tokenTTL() time.Duration {
	if s.TokenTTL > 0 {
		return s.TokenTTL
	}
	return 24 * time.Hour
}

func (s *Service) validatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("auth: user repository required")
	case s.Passwords == nil:
		return errors.New("auth: password hasher required")
	case s.Tokens == nil:
		return errors.New("auth: token issuer required")
	default:
		return nil
	}
}

var _ policies.UserDirectory = (*Service)(nil)
