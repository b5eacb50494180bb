package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/storage/storetest"
)

func TestSessionStore(t *testing.T) {
	storetest.RunSessionStore(t, func(t *testing.T) session.Store {
		return NewSessionStore()
	})
}

func TestAuditStore(t *testing.T) {
	storetest.RunAuditStore(t, func(t *testing.T) audit.Store {
		return NewAuditStore()
	})
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	s := NewSessionStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Insert(ctx, &session.Session{
		ID: "s1", UserID: "u1", TokenHash: "h", CreatedAt: now,
		ExpiresAt: now.Add(time.Hour), LastActivityAt: now, IsActive: true,
	}))

	got, err := s.FindActiveByTokenHash(ctx, "h", now)
	require.NoError(t, err)
	got.IsActive = false

	again, err := s.FindActiveByTokenHash(ctx, "h", now)
	require.NoError(t, err)
	assert.True(t, again.IsActive, "mutating a returned session must not affect the store")
}
