package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/internal/clock"
	"github.com/ashley-ai/sentinel/kv"
	"github.com/ashley-ai/sentinel/kv/kvtest"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Time{})
	opts = append([]Option{WithClock(clk.Now), WithSweepInterval(0)}, opts...)
	s := New(opts...)
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func TestMemoryStoreConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) (kv.Store, func(time.Duration)) {
		s, clock := newTestStore(t)
		return s, clock.Advance
	})
}

func TestSweepRemovesExpired(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("1"), time.Hour))
	require.NoError(t, s.Set(ctx, "forever", []byte("1"), 0))

	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 2, s.Len())
}

func TestForcedSweepBoundsGrowth(t *testing.T) {
	s, clock := newTestStore(t, WithMaxEntries(10))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.Incr(ctx, fmt.Sprintf("old:%d", i), time.Second)
		require.NoError(t, err)
	}
	clock.Advance(2 * time.Second)

	// The 11th write exceeds the cap and sweeps the expired windows.
	_, err := s.Incr(ctx, "fresh", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestIncrNonInteger(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", []byte("abc"), 0))
	_, err := s.Incr(ctx, "k", 0)
	assert.Error(t, err)
}

func TestConcurrentIncr(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Incr(ctx, "shared", time.Minute)
		}()
	}
	wg.Wait()

	n, err := s.Incr(ctx, "shared", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(51), n, "every concurrent increment must be counted")
}

func TestInvalidPattern(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.DeletePattern(context.Background(), "[")
	assert.Error(t, err)
}

func TestCloseIdempotent(t *testing.T) {
	s := New(WithSweepInterval(time.Millisecond))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
