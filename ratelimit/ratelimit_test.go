package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/internal/clock"
	"github.com/ashley-ai/sentinel/kv"
	"github.com/ashley-ai/sentinel/kv/memory"
)

func newTestLimiter(t *testing.T) (*Limiter, *memory.Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Time{})
	store := memory.New(memory.WithClock(clk.Now), memory.WithSweepInterval(0))
	t.Cleanup(func() { store.Close() })
	return New(store, WithClock(clk.Now)), store, clk
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("store unavailable")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errBroken
}
func (brokenStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errBroken
}
func (brokenStore) Expire(context.Context, string, time.Duration) error { return errBroken }
func (brokenStore) Delete(context.Context, ...string) error             { return errBroken }
func (brokenStore) DeletePattern(context.Context, string) (int64, error) {
	return 0, errBroken
}

var _ kv.Store = brokenStore{}

func TestCheckAllowsUpToLimit(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 3, Window: time.Minute}

	for want := 2; want >= 0; want-- {
		res := l.Check(ctx, "ip:1.2.3.4", cfg)
		require.True(t, res.Allowed)
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, 3, res.Limit)
		assert.Zero(t, res.RetryAfter, "retry-after is only set on deny")
	}

	res := l.Check(ctx, "ip:1.2.3.4", cfg)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, clock.Epoch.Add(time.Minute), res.ResetAt)
	assert.Equal(t, time.Minute, res.RetryAfter)
}

func TestRetryAfterRoundsUp(t *testing.T) {
	l, _, clk := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 1, Window: time.Minute}

	clk.Advance(10*time.Second + 500*time.Millisecond)
	require.True(t, l.Check(ctx, "k", cfg).Allowed)
	res := l.Check(ctx, "k", cfg)
	require.False(t, res.Allowed)
	assert.Equal(t, 50*time.Second, res.RetryAfter)

	clk.Advance(49*time.Second + 400*time.Millisecond)
	res = l.Check(ctx, "k", cfg)
	require.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter, "retry-after never drops below one second")
}

func TestWindowRollover(t *testing.T) {
	l, _, clk := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 2, Window: time.Minute}

	l.Check(ctx, "k", cfg)
	l.Check(ctx, "k", cfg)
	require.False(t, l.Check(ctx, "k", cfg).Allowed)

	clk.Advance(time.Minute)
	res := l.Check(ctx, "k", cfg)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, clock.Epoch.Add(2*time.Minute), res.ResetAt)
}

func TestResetAtKeepsClockLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	clk := clock.NewFake(clock.Epoch.In(loc))
	store := memory.New(memory.WithClock(clk.Now), memory.WithSweepInterval(0))
	t.Cleanup(func() { store.Close() })
	l := New(store, WithClock(clk.Now))

	res := l.Check(context.Background(), "k", Config{Limit: 1, Window: time.Minute})
	assert.Equal(t, loc, res.ResetAt.Location())
	assert.True(t, clock.Epoch.Add(time.Minute).Equal(res.ResetAt))

	res = l.Check(context.Background(), "k", Config{Limit: 1, Window: time.Minute})
	require.False(t, res.Allowed)
	assert.Equal(t, clock.Epoch.Add(time.Minute).In(loc), res.ResetAt)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 1, Window: time.Minute}

	require.True(t, l.Check(ctx, "ip:1.1.1.1", cfg).Allowed)
	require.False(t, l.Check(ctx, "ip:1.1.1.1", cfg).Allowed)
	assert.True(t, l.Check(ctx, "ip:2.2.2.2", cfg).Allowed)
}

func TestCheckWritesWindowKey(t *testing.T) {
	l, store, _ := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 5, Window: time.Minute}

	l.Check(ctx, "user:u1", cfg)
	idx := clock.Epoch.UnixMilli() / time.Minute.Milliseconds()
	v, err := store.Get(ctx, "ratelimit:user:u1:"+strconv.FormatInt(idx, 10))
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
}

func TestCheckFailsOpen(t *testing.T) {
	l := New(brokenStore{})
	cfg := Config{Limit: 2, Window: time.Minute}

	for i := 0; i < 5; i++ {
		res := l.Check(context.Background(), "k", cfg)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
		assert.Equal(t, 2, res.Limit)
	}
}

func TestCheckInvalidWindowAllows(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	res := l.Check(context.Background(), "k", Config{Limit: 1, Window: 0})
	assert.True(t, res.Allowed)
}

func TestReset(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 1, Window: 15 * time.Minute}

	l.Check(ctx, "ip:9.9.9.9", cfg)
	require.False(t, l.Check(ctx, "ip:9.9.9.9", cfg).Allowed)

	require.NoError(t, l.Reset(ctx, "ip:9.9.9.9", cfg))
	assert.True(t, l.Check(ctx, "ip:9.9.9.9", cfg).Allowed)
}

func TestStatusDoesNotCount(t *testing.T) {
	l, _, _ := newTestLimiter(t)
	ctx := context.Background()
	cfg := Config{Limit: 2, Window: time.Minute}

	res, err := l.Status(ctx, "k", cfg)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)

	l.Check(ctx, "k", cfg)
	l.Check(ctx, "k", cfg)

	res, err = l.Status(ctx, "k", cfg)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	_, err = New(brokenStore{}).Status(ctx, "k", cfg)
	assert.ErrorIs(t, err, errBroken)
}

func TestTiers(t *testing.T) {
	tiers := DefaultTiers()
	assert.Equal(t, Config{Limit: 5, Window: 15 * time.Minute}, tiers[TierAuth])
	assert.Equal(t, Config{Limit: 3, Window: 15 * time.Minute}, tiers[TierPasswordReset])
	assert.Equal(t, Config{Limit: 20, Window: 15 * time.Minute}, tiers[TierPasswordCheck])
	assert.Equal(t, Config{Limit: 100, Window: time.Minute}, tiers[TierAPI])
	assert.Equal(t, Config{Limit: 300, Window: time.Minute}, tiers[TierRead])
	assert.Equal(t, Config{Limit: 30, Window: time.Minute}, tiers[TierWrite])
	assert.Equal(t, Config{Limit: 10, Window: time.Hour}, tiers[TierExpensive])
	assert.Equal(t, Config{Limit: 100, Window: time.Hour}, tiers[TierUpload])

	unknown := tiers.Get("reports")
	assert.Equal(t, "reports", unknown.Name)
	assert.Equal(t, tiers[TierAPI], unknown.Config)

	merged := tiers.Merge(map[string]Config{
		TierAuth: {Limit: 10, Window: time.Minute},
		TierRead: {Limit: 0, Window: time.Minute},
	})
	assert.Equal(t, 10, merged.Get(TierAuth).Limit)
	assert.Equal(t, 300, merged.Get(TierRead).Limit, "invalid overrides are ignored")
	assert.Equal(t, 5, tiers[TierAuth].Limit, "merge must not mutate the receiver")
}
