package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainauth "villabook/internal/domain/auth"
	domainuser "villabook/internal/domain/user"
	"villabook/internal/infra/security"
	"villabook/internal/infra/storage/memory"
)

func newService() (*Service, *memory.UserRepository) {
	users := memory.NewUserRepository()
	return &Service{
		Users:     users,
		Passwords: security.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens:    security.JWTIssuer{Secret: []byte("test-secret"), Issuer: "villabook"},
		TokenTTL:  time.Hour,
	}, users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterParams{Email: " Guest@Example.com ", Name: "Guest", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", registered.User.Email)
	assert.Equal(t, domainuser.RoleUser, registered.User.Role)
	assert.NotEmpty(t, registered.Token)

	_, err = svc.Register(ctx, RegisterParams{Email: "guest@example.com", Name: "Again", Password: "longenough"})
	assert.ErrorIs(t, err, domainuser.ErrEmailAlreadyUsed)
	_, err = svc.Register(ctx, RegisterParams{Email: "other@example.com", Name: "Other", Password: "short"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	_, err = svc.Register(ctx, RegisterParams{Email: "other@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, domainuser.ErrNameRequired)

	logged, err := svc.Login(ctx, LoginParams{Email: "GUEST@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, logged.User.ID)

	_, err = svc.Login(ctx, LoginParams{Email: "guest@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResolveTokenUsesStoredRole(t *testing.T) {
	svc, users := newService()
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterParams{Email: "host@example.com", Name: "Host", Password: "longenough"})
	require.NoError(t, err)

	user, err := users.ByID(ctx, res.User.ID)
	require.NoError(t, err)
	user.Role = domainuser.RoleAdmin
	require.NoError(t, users.Save(ctx, user))

	identity, err := svc.ResolveToken(ctx, "  "+res.Token+" ")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, identity.UserID)
	assert.True(t, identity.IsAdmin())

	_, err = svc.ResolveToken(ctx, "")
	assert.ErrorIs(t, err, domainauth.ErrTokenRequired)
	_, err = svc.ResolveToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, domainauth.ErrTokenInvalid)

	contact, err := svc.Contact(ctx, string(res.User.ID))
	require.NoError(t, err)
	assert.Equal(t, "host@example.com", contact.Email)
	assert.Equal(t, "Host", contact.Name)
}

func TestResolveTokenForDeletedUser(t *testing.T) {
	svc, _ := newService()
	token, err := svc.Tokens.Issue(domainauth.Grant{UserID: "ghost", Role: domainuser.RoleUser, TTL: time.Hour})
	require.NoError(t, err)

	_, err = svc.ResolveToken(context.Background(), token)
	assert.ErrorIs(t, err, domainauth.ErrTokenInvalid)
}
