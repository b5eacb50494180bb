package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/kv"
	"github.com/ashley-ai/sentinel/kv/kvtest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := New(client)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStoreConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) (kv.Store, func(time.Duration)) {
		s, mr := newTestStore(t)
		return s, mr.FastForward
	})
}

func TestIncrSetsTTL(t *testing.T) {
	s, mr := newTestStore(t)
	_, err := s.Incr(context.Background(), "ratelimit:ip:1.2.3.4:42", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:ip:1.2.3.4:42"))
}

func TestNewFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewFromURL(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewFromURLInvalid(t *testing.T) {
	_, err := NewFromURL(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestUnavailableServer(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()
	_, err := s.Incr(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
