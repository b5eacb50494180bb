package kv

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// Cache stores JSON-encoded values in a Store under a common key prefix.
// Cache failures never fail the caller: reads fall through to the loader and
// writes are logged and dropped.
type Cache struct {
	store  Store
	prefix string
	logger *slog.Logger
}

// NewCache returns a Cache writing keys as prefix + key.
func NewCache(store Store, prefix string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, prefix: prefix, logger: logger.With("component", "cache")}
}

// GetJSON decodes the cached value for key into dst. It reports false when the
// key is absent.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.store.Get(ctx, c.prefix+key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON encodes v and stores it under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.prefix+key, data, ttl)
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.store.Delete(ctx, full...)
}

// InvalidatePrefix removes every key beginning with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	return c.store.DeletePattern(ctx, c.prefix+prefix+"*")
}

// Remember returns the cached value for key, or calls load, caches its result
// for ttl and returns it. A nil cache always calls load.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	var cached T
	ok, err := c.GetJSON(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if ok {
		return cached, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.SetJSON(ctx, key, v, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}
