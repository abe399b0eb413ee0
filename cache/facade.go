package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Compute produces a value to cache after a miss. It must be idempotent:
// two concurrent callers may both observe the same miss and both run it.
type Compute func(ctx context.Context) (string, error)

// ComputeJSON is Compute for the JSON-flavored operations; the returned
// value is encoded before being cached.
type ComputeJSON func(ctx context.Context) (any, error)

// Options configures a Cache facade.
type Options struct {
	Logger *slog.Logger
}

type Option func(*Options)

// WithLogger routes best-effort failure reports (Pull's delete, Remember's
// cache fill) to the given logger instead of discarding them.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Cache composes higher-level operations out of the Driver primitives. It
// contains no backend-specific logic and works with any Driver, which is
// also the substitution point for tests: wire in the memory driver and the
// whole facade runs in-process.
type Cache struct {
	driver Driver
	log    *slog.Logger
}

// New wraps driver in a Cache facade.
func New(driver Driver, opts ...Option) *Cache {
	cfg := Options{Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Cache{driver: driver, log: cfg.Logger}
}

// Driver returns the underlying driver, for callers that need a primitive
// the facade does not re-export.
func (c *Cache) Driver() Driver { return c.driver }

// Get returns the value stored under key, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	return c.driver.Get(ctx, key)
}

// Put stores value under key for ttl.
func (c *Cache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.driver.Put(ctx, key, value, ttl)
}

// PutForever stores value under key with no expiry.
func (c *Cache) PutForever(ctx context.Context, key, value string) error {
	return c.driver.PutForever(ctx, key, value)
}

// Forget removes key; removing an absent key succeeds.
func (c *Cache) Forget(ctx context.Context, key string) error {
	return c.driver.Forget(ctx, key)
}

// Increment atomically adds delta to the integer under key.
func (c *Cache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return c.driver.Increment(ctx, key, delta)
}

// Decrement atomically subtracts delta from the integer under key.
func (c *Cache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return c.driver.Decrement(ctx, key, delta)
}

// Flush removes every key in the facade's store namespace.
func (c *Cache) Flush(ctx context.Context) error {
	return c.driver.Flush(ctx)
}

// Has reports whether key exists. A backend failure collapses to false: the
// probe is advisory and callers must not treat its answer as a guarantee
// the backend is reachable.
func (c *Cache) Has(ctx context.Context, key string) bool {
	ok, err := c.driver.Has(ctx, key)
	if err != nil {
		c.log.Warn("cache: existence probe failed", "key", key, "error", err)
		return false
	}
	return ok
}

// Pull returns the value under key and removes it. The removal is
// best-effort: once the read has succeeded the value is returned even if
// the delete fails.
func (c *Cache) Pull(ctx context.Context, key string) (string, error) {
	val, err := c.driver.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if err := c.driver.Forget(ctx, key); err != nil {
		c.log.Warn("cache: pull could not remove key", "key", key, "error", err)
	}
	return val, nil
}

// Remember returns the value under key, computing and caching it with ttl
// on a miss. compute runs only when the key is absent: a connection failure
// on the read propagates without invoking it, and a compute failure is
// returned as an ErrCompute wrap with nothing cached. A fill failure after
// a successful compute is logged and the computed value is still returned.
func (c *Cache) Remember(ctx context.Context, key string, ttl time.Duration, compute Compute) (string, error) {
	return c.remember(ctx, key, compute, func(ctx context.Context, val string) error {
		return c.driver.Put(ctx, key, val, ttl)
	})
}

// RememberForever is Remember with no expiry on the cached value.
func (c *Cache) RememberForever(ctx context.Context, key string, compute Compute) (string, error) {
	return c.remember(ctx, key, compute, func(ctx context.Context, val string) error {
		return c.driver.PutForever(ctx, key, val)
	})
}

func (c *Cache) remember(ctx context.Context, key string, compute Compute, fill func(context.Context, string) error) (string, error) {
	val, err := c.driver.Get(ctx, key)
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	computed, err := compute(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompute, err)
	}
	if err := fill(ctx, computed); err != nil {
		c.log.Warn("cache: remember could not store computed value", "key", key, "error", err)
	}
	return computed, nil
}

// GetJSON decodes the value stored under key into dest. A value that does
// not decode surfaces as ErrSerialization.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := c.driver.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// PutJSON encodes value and stores it under key for ttl.
func (c *Cache) PutJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return c.driver.Put(ctx, key, string(raw), ttl)
}

// RememberJSON decodes the value under key into dest, computing and caching
// a replacement when the key is missing or the stored value no longer
// decodes into dest's shape. A corrupted or type-mismatched entry is
// silently replaced rather than surfaced, so schema changes do not wedge a
// cache until its entries expire.
func (c *Cache) RememberJSON(ctx context.Context, key string, ttl time.Duration, dest any, compute ComputeJSON) error {
	err := c.GetJSON(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrSerialization) {
		return err
	}

	computed, err := compute(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCompute, err)
	}
	raw, err := json.Marshal(computed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if err := c.driver.Put(ctx, key, string(raw), ttl); err != nil {
		c.log.Warn("cache: remember could not store computed value", "key", key, "error", err)
	}
	// Decode from the encoded form so dest sees exactly what a later
	// cache hit would produce.
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}
