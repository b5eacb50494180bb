// Package storetest holds conformance suites shared by every session and
// audit store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/session"
)

// base is the reference time used by the suites. Stored timestamps are
// compared with time.Time.Equal so backends may change the location.
var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newSession(id, userID, hash string, created time.Time, lifetime time.Duration) *session.Session {
	return &session.Session{
		ID:             id,
		UserID:         userID,
		TokenHash:      hash,
		IPAddress:      "192.0.2.1",
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0",
		CreatedAt:      created,
		ExpiresAt:      created.Add(lifetime),
		LastActivityAt: created,
		IsActive:       true,
	}
}

// RunSessionStore exercises a session.Store. newStore must return an empty
// store.
func RunSessionStore(t *testing.T, newStore func(t *testing.T) session.Store) {
	ctx := context.Background()
	week := 7 * 24 * time.Hour

	t.Run("InsertAndFind", func(t *testing.T) {
		s := newStore(t)
		in := newSession("s1", "u1", "hash-1", base, week)
		in.Token = "plaintext"
		require.NoError(t, s.Insert(ctx, in))

		got, err := s.FindActiveByTokenHash(ctx, "hash-1", base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, "192.0.2.1", got.IPAddress)
		assert.Empty(t, got.Token, "plaintext token must never be stored")
		assert.True(t, got.IsActive)
		assert.True(t, got.ExpiresAt.Equal(base.Add(week)))
	})

	t.Run("FindIgnoresExpiredAndRevoked", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newSession("s1", "u1", "hash-1", base, time.Hour)))
		require.NoError(t, s.Insert(ctx, newSession("s2", "u1", "hash-2", base, week)))

		_, err := s.FindActiveByTokenHash(ctx, "hash-1", base.Add(2*time.Hour))
		assert.ErrorIs(t, err, session.ErrNotFound)

		n, err := s.Deactivate(ctx, "s2", "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = s.FindActiveByTokenHash(ctx, "hash-2", base)
		assert.ErrorIs(t, err, session.ErrNotFound)

		_, err = s.FindActiveByTokenHash(ctx, "nope", base)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("TouchActivity", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newSession("s1", "u1", "hash-1", base, week)))
		later := base.Add(3 * time.Hour)
		require.NoError(t, s.TouchActivity(ctx, "s1", later))
		require.NoError(t, s.TouchActivity(ctx, "missing", later))

		got, err := s.FindActiveByTokenHash(ctx, "hash-1", later)
		require.NoError(t, err)
		assert.True(t, got.LastActivityAt.Equal(later))
		assert.True(t, got.ExpiresAt.Equal(base.Add(week)), "activity must not extend expiry")
	})

	t.Run("ListActive", func(t *testing.T) {
		s := newStore(t)
		a := newSession("a", "u1", "h-a", base, week)
		b := newSession("b", "u1", "h-b", base.Add(time.Minute), week)
		b.LastActivityAt = base.Add(time.Hour)
		c := newSession("c", "u1", "h-c", base, time.Minute)
		d := newSession("d", "u2", "h-d", base, week)
		for _, x := range []*session.Session{a, b, c, d} {
			require.NoError(t, s.Insert(ctx, x))
		}

		got, err := s.ListActive(ctx, "u1", base.Add(10*time.Minute))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "b", got[0].ID, "most recently active first")
		assert.Equal(t, "a", got[1].ID)
		assert.Equal(t, "h-b", got[0].TokenHash)
	})

	t.Run("DeactivateIsOwnershipScoped", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newSession("s1", "u1", "hash-1", base, week)))

		n, err := s.Deactivate(ctx, "s1", "intruder")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
		_, err = s.FindActiveByTokenHash(ctx, "hash-1", base)
		require.NoError(t, err)

		n, err = s.Deactivate(ctx, "s1", "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.Deactivate(ctx, "s1", "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n, "second revoke is a no-op")

		n, err = s.Deactivate(ctx, "missing", "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("DeactivateAll", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"s1", "s2", "s3"} {
			require.NoError(t, s.Insert(ctx, newSession(id, "u1", "h-"+id, base, week)))
		}
		require.NoError(t, s.Insert(ctx, newSession("other", "u2", "h-other", base, week)))

		n, err := s.DeactivateAll(ctx, "u1", "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		count, err := s.CountActive(ctx, "u1", base)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		n, err = s.DeactivateAll(ctx, "u1", "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		count, err = s.CountActive(ctx, "u2", base)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "other users are untouched")
	})

	t.Run("DeleteStale", func(t *testing.T) {
		s := newStore(t)
		now := base.Add(40 * 24 * time.Hour)

		expired := newSession("expired", "u1", "h1", base, time.Hour)
		oldRevoked := newSession("old-revoked", "u1", "h2", base, 60*24*time.Hour)
		freshRevoked := newSession("fresh-revoked", "u1", "h3", now.Add(-24*time.Hour), week)
		live := newSession("live", "u1", "h4", now.Add(-time.Hour), week)
		for _, x := range []*session.Session{expired, oldRevoked, freshRevoked, live} {
			require.NoError(t, s.Insert(ctx, x))
		}
		_, err := s.Deactivate(ctx, "old-revoked", "u1")
		require.NoError(t, err)
		_, err = s.Deactivate(ctx, "fresh-revoked", "u1")
		require.NoError(t, err)

		n, err := s.DeleteStale(ctx, now, now.Add(-30*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		st, err := s.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), st.TotalActive)
		assert.Equal(t, int64(1), st.TotalInactive, "recently revoked session is kept")
	})

	t.Run("ExtendExpiry", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, newSession("s1", "u1", "h1", base, week)))
		require.NoError(t, s.Insert(ctx, newSession("gone", "u1", "h2", base, time.Hour)))

		ok, err := s.ExtendExpiry(ctx, "s1", 3*24*time.Hour, base)
		require.NoError(t, err)
		assert.True(t, ok)
		got, err := s.FindActiveByTokenHash(ctx, "h1", base)
		require.NoError(t, err)
		assert.True(t, got.ExpiresAt.Equal(base.Add(10*24*time.Hour)))

		ok, err = s.ExtendExpiry(ctx, "gone", week, base.Add(2*time.Hour))
		require.NoError(t, err)
		assert.False(t, ok, "expired sessions cannot be revived")

		ok, err = s.ExtendExpiry(ctx, "missing", week, base)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("OldestActive", func(t *testing.T) {
		s := newStore(t)
		_, err := s.OldestActive(ctx, "u1", base)
		assert.ErrorIs(t, err, session.ErrNotFound)

		a := newSession("a", "u1", "h-a", base, week)
		a.LastActivityAt = base.Add(2 * time.Hour)
		b := newSession("b", "u1", "h-b", base.Add(time.Minute), week)
		b.LastActivityAt = base.Add(time.Hour)
		c := newSession("c", "u1", "h-c", base, week)
		for _, x := range []*session.Session{a, b, c} {
			require.NoError(t, s.Insert(ctx, x))
		}
		_, err = s.Deactivate(ctx, "c", "u1")
		require.NoError(t, err)

		got, err := s.OldestActive(ctx, "u1", base.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "b", got.ID)
	})

	t.Run("Stats", func(t *testing.T) {
		s := newStore(t)
		now := base.Add(10 * 24 * time.Hour)

		recent := newSession("recent", "u1", "h1", now.Add(-time.Hour), week)
		weekOld := newSession("week", "u1", "h2", now.Add(-3*24*time.Hour), week)
		stale := newSession("stale", "u2", "h3", base, 30*24*time.Hour)
		expired := newSession("expired", "u2", "h4", base, time.Hour)
		revoked := newSession("revoked", "u3", "h5", now.Add(-time.Hour), week)
		for _, x := range []*session.Session{recent, weekOld, stale, expired, revoked} {
			require.NoError(t, s.Insert(ctx, x))
		}
		_, err := s.Deactivate(ctx, "revoked", "u3")
		require.NoError(t, err)

		st, err := s.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, session.Stats{
			TotalActive:       3,
			TotalInactive:     2,
			ActiveLast24Hours: 1,
			ActiveLast7Days:   2,
		}, st)
	})
}
