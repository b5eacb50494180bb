// Package memory provides a process-local implementation of kv.Store.
//
// It is the fallback used when no Redis URL is configured. Counters are not
// shared between server instances, so limits are enforced per process.
package memory

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/ashley-ai/sentinel/kv"
)

const (
	// DefaultSweepInterval is how often expired entries are removed.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultMaxEntries forces a sweep on write once the map grows past it.
	DefaultMaxEntries = 10_000
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store is a thread-safe in-memory kv.Store with a background sweep loop.
type Store struct {
	mu         sync.Mutex
	entries    map[string]entry
	now        func() time.Time
	sweepEvery time.Duration
	maxEntries int

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

var _ kv.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSweepInterval sets how often expired entries are swept. Zero disables
// the background loop; expired entries are then only dropped lazily and by
// forced sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepEvery = d }
}

// WithMaxEntries sets the entry count above which a write forces a sweep.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// New creates a Store and starts its sweep loop. Call Close to stop it.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]entry),
		now:        time.Now,
		sweepEvery: DefaultSweepInterval,
		maxEntries: DefaultMaxEntries,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sweepEvery > 0 {
		go s.sweepLoop()
	} else {
		close(s.done)
	}
	return s
}

// Close stops the background sweep loop. It is safe to call more than once.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	s.maybeSweepLocked()
	return nil
}

func (s *Store) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	e, ok := s.entries[key]
	if ok && !e.expired(now) {
		cur, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = cur
	} else {
		e = entry{}
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	s.entries[key] = e
	s.maybeSweepLocked()
	return n, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || e.expired(now) {
		delete(s.entries, key)
		return kv.ErrNotFound
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	e.expiresAt = now.Add(ttl)
	s.entries[key] = e
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// DeletePattern matches keys with path.Match semantics, so '*' does not
// cross a '/' the way it does in Redis. Keys written by this module never
// contain '/'.
func (s *Store) DeletePattern(_ context.Context, pattern string) (int64, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k := range s.entries {
		if ok, _ := path.Match(pattern, k); ok {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *Store) sweepLocked() int {
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *Store) maybeSweepLocked() {
	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.sweepLocked()
	}
}

func (s *Store) sweepLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
