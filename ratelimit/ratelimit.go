// Package ratelimit bounds request rates per identifier using fixed-window
// counting over a kv.Store.
//
// The counter for a request lives at
//
//	<prefix><identifier>:<floor(now / window)>
//
// and is incremented with a TTL equal to the window, so abandoned windows
// expire on their own. When the store fails the limiter fails open: the
// request is allowed with the full limit remaining.
package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ashley-ai/sentinel/kv"
)

const defaultKeyPrefix = "ratelimit:"

// Config is a limit/window pair.
type Config struct {
	Limit  int           `json:"limit" yaml:"limit"`
	Window time.Duration `json:"window" yaml:"window"`
}

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
	// RetryAfter is only set when the request was denied. It is rounded up
	// to whole seconds.
	RetryAfter time.Duration
}

// Limiter performs fixed-window rate limiting.
type Limiter struct {
	store  kv.Store
	now    func() time.Time
	logger *slog.Logger
	prefix string
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the logger used to report store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithKeyPrefix changes the key namespace (default "ratelimit:").
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// New creates a Limiter over store.
func New(store kv.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		now:    time.Now,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	l.logger = l.logger.With("component", "ratelimit")
	return l
}

// window returns the window index and its reset time for now. The reset
// time keeps now's location.
func (l *Limiter) window(now time.Time, cfg Config) (int64, time.Time) {
	ms := cfg.Window.Milliseconds()
	idx := now.UnixMilli() / ms
	return idx, time.UnixMilli((idx + 1) * ms).In(now.Location())
}

func (l *Limiter) key(identifier string, idx int64) string {
	return l.prefix + identifier + ":" + strconv.FormatInt(idx, 10)
}

// Check counts one request for identifier against cfg.
func (l *Limiter) Check(ctx context.Context, identifier string, cfg Config) Result {
	if cfg.Window < time.Millisecond {
		l.logger.Warn("rate limit window too small; allowing request",
			"identifier", identifier, "window", cfg.Window)
		return Result{Allowed: true, Remaining: cfg.Limit, Limit: cfg.Limit, ResetAt: l.now()}
	}

	now := l.now()
	idx, resetAt := l.window(now, cfg)

	count, err := l.store.Incr(ctx, l.key(identifier, idx), cfg.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable; failing open",
			"identifier", identifier, "error", err)
		return Result{Allowed: true, Remaining: cfg.Limit, Limit: cfg.Limit, ResetAt: resetAt}
	}

	res := Result{
		Allowed:   count <= int64(cfg.Limit),
		Remaining: max(0, cfg.Limit-int(count)),
		Limit:     cfg.Limit,
		ResetAt:   resetAt,
	}
	if !res.Allowed {
		res.RetryAfter = roundUpSeconds(resetAt.Sub(now))
	}
	return res
}

// Status reports the current window for identifier without counting a
// request.
func (l *Limiter) Status(ctx context.Context, identifier string, cfg Config) (Result, error) {
	if cfg.Window < time.Millisecond {
		return Result{}, errors.New("rate limit window must be at least 1ms")
	}
	now := l.now()
	idx, resetAt := l.window(now, cfg)

	var count int64
	data, err := l.store.Get(ctx, l.key(identifier, idx))
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return Result{}, err
	default:
		count, err = strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return Result{}, err
		}
	}
	return Result{
		Allowed:   count < int64(cfg.Limit),
		Remaining: max(0, cfg.Limit-int(count)),
		Limit:     cfg.Limit,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the current window for identifier, e.g. after a successful
// login.
func (l *Limiter) Reset(ctx context.Context, identifier string, cfg Config) error {
	if cfg.Window < time.Millisecond {
		return nil
	}
	idx, _ := l.window(l.now(), cfg)
	return l.store.Delete(ctx, l.key(identifier, idx))
}

func roundUpSeconds(d time.Duration) time.Duration {
	secs := (d + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
