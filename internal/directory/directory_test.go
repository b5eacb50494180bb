package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashley-ai/sentinel/api"
	"github.com/ashley-ai/sentinel/internal/config"
)

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestStatic(t *testing.T) {
	d, err := New([]config.User{
		{ID: "u-1", Username: "alice", PasswordHash: hash(t, "alice-secret"), Admin: true},
		{Username: "bob", PasswordHash: hash(t, "bob-secret")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	ctx := t.Context()

	p, err := d.Authenticate(ctx, "alice", "alice-secret")
	require.NoError(t, err)
	assert.Equal(t, api.Principal{UserID: "u-1", Admin: true}, p)

	p, err = d.Authenticate(ctx, "bob", "bob-secret")
	require.NoError(t, err)
	assert.Equal(t, api.Principal{UserID: "bob"}, p)

	_, err = d.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	_, err = d.Authenticate(ctx, "mallory", "alice-secret")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	p, err = d.Lookup(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, p.Admin)

	_, err = d.Lookup(ctx, "alice")
	assert.ErrorIs(t, err, api.ErrUnknownUser)
}

func TestStaticRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]config.User{
		{ID: "x", Username: "a", PasswordHash: "h"},
		{ID: "x", Username: "b", PasswordHash: "h"},
	})
	assert.Error(t, err)
}

func TestStaticCorruptHash(t *testing.T) {
	d, err := New([]config.User{{Username: "carol", PasswordHash: "not-bcrypt"}})
	require.NoError(t, err)
	_, err = d.Authenticate(t.Context(), "carol", "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, api.ErrInvalidCredentials)
}
