// Package kvtest holds the conformance suite every kv.Store backend runs.
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/kv"
)

// Factory returns a fresh, empty store and a function that moves the store's
// notion of time forward.
type Factory func(t *testing.T) (store kv.Store, advance func(time.Duration))

// Run exercises the kv.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("SetTTLExpires", func(t *testing.T) {
		s, advance := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
		advance(30 * time.Second)
		_, err := s.Get(ctx, "k")
		require.NoError(t, err, "value should survive half its TTL")
		advance(31 * time.Second)
		_, err = s.Get(ctx, "k")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("IncrCounts", func(t *testing.T) {
		s, _ := newStore(t)
		for want := int64(1); want <= 3; want++ {
			n, err := s.Incr(ctx, "c", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
	})

	t.Run("IncrRestartsAfterExpiry", func(t *testing.T) {
		s, advance := newStore(t)
		_, err := s.Incr(ctx, "c", time.Minute)
		require.NoError(t, err)
		_, err = s.Incr(ctx, "c", time.Minute)
		require.NoError(t, err)
		advance(2 * time.Minute)
		n, err := s.Incr(ctx, "c", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ExpireMissing", func(t *testing.T) {
		s, _ := newStore(t)
		assert.ErrorIs(t, s.Expire(ctx, "missing", time.Minute), kv.ErrNotFound)
	})

	t.Run("ExpireShortens", func(t *testing.T) {
		s, advance := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, s.Expire(ctx, "k", 10*time.Second))
		advance(11 * time.Second)
		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
		require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
		require.NoError(t, s.Delete(ctx, "a", "b", "never-existed"))
		_, err := s.Get(ctx, "a")
		assert.ErrorIs(t, err, kv.ErrNotFound)
		_, err = s.Get(ctx, "b")
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("DeletePattern", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Set(ctx, "ratelimit:a:1", []byte("1"), 0))
		require.NoError(t, s.Set(ctx, "ratelimit:b:1", []byte("1"), 0))
		require.NoError(t, s.Set(ctx, "cache:x", []byte("1"), 0))

		n, err := s.DeletePattern(ctx, "ratelimit:*")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = s.Get(ctx, "cache:x")
		assert.NoError(t, err, "keys outside the pattern must survive")
	})
}
