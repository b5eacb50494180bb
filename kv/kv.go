// Package kv defines the key-value store used for rate-limit counters and
// short-lived caching. Two implementations exist: kv/redis, shared between
// server instances, and kv/memory, a process-local fallback used when no
// Redis URL is configured.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Expire when the key does not exist or
// has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the minimal key-value contract shared by every backend.
//
// A ttl of zero means "no expiry" for Set. Incr increments the integer value
// at key (treating a missing key as 0) and, when ttl > 0, sets the key's
// time-to-live in the same atomic step.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern ("ratelimit:*")
	// and returns how many were removed.
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}
