package kv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/kv"
	"github.com/ashley-ai/sentinel/kv/memory"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newCache(t *testing.T) *kv.Cache {
	t.Helper()
	s := memory.New(memory.WithSweepInterval(0))
	t.Cleanup(func() { s.Close() })
	return kv.NewCache(s, "cache:", nil)
}

func TestCacheJSONRoundTrip(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "p", payload{Name: "a", Count: 2}, time.Minute))
	var got payload
	ok, err := c.GetJSON(ctx, "p", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)

	require.NoError(t, c.Invalidate(ctx, "p"))
	ok, err = c.GetJSON(ctx, "p", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRememberLoadsOnce(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "stats", Count: calls}, nil
	}

	first, err := kv.Remember(ctx, c, "stats", time.Minute, load)
	require.NoError(t, err)
	second, err := kv.Remember(ctx, c, "stats", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestRememberDoesNotCacheErrors(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_, err := kv.Remember(ctx, c, "k", time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)

	v, err := kv.Remember(ctx, c, "k", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRememberNilCache(t *testing.T) {
	v, err := kv.Remember(context.Background(), nil, "k", time.Minute, func(context.Context) (string, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", v)
}

func TestInvalidatePrefix(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, "user:1", 1, 0))
	require.NoError(t, c.SetJSON(ctx, "user:2", 2, 0))
	require.NoError(t, c.SetJSON(ctx, "order:1", 3, 0))

	n, err := c.InvalidatePrefix(ctx, "user:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
