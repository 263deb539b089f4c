package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserNormalizes(t *testing.T) {
	u, err := NewUser(CreateParams{ID: "u-1", Email: " Guest@Example.COM ", Name: " Guest ", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", u.Email)
	assert.Equal(t, "Guest", u.Name)
	assert.Equal(t, RoleUser, u.Role)
	assert.False(t, u.IsAdmin())
	assert.False(t, u.CreatedAt.IsZero())
}

func TestNewUserRejectsMissingFields(t *testing.T) {
	_, err := NewUser(CreateParams{Email: "a@b.c", Name: "n", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrIDRequired)
	_, err = NewUser(CreateParams{ID: "u", Name: "n", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrEmailRequired)
	_, err = NewUser(CreateParams{ID: "u", Email: "a@b.c", Name: "n"})
	require.ErrorIs(t, err, ErrPasswordHashMissing)
	_, err = NewUser(CreateParams{ID: "u", Email: "a@b.c", PasswordHash: "h"})
	require.ErrorIs(t, err, ErrNameRequired)
	_, err = NewUser(CreateParams{ID: "u", Email: "a@b.c", Name: "n", PasswordHash: "h", Role: "host"})
	require.ErrorIs(t, err, ErrInvalidRole)
}
