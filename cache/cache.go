// Package cache defines a backend-agnostic key-value cache contract with TTL
// support, plus a facade of composite operations built on top of it.
// Backend implementations live in the redis, memory, and postgres
// subpackages; everything in this package depends only on the Driver
// interface and works identically against any of them.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that a key is absent. It is reserved for
	// absence and never used for backend failures; composite operations
	// rely on the distinction to decide between recomputing and giving
	// up.
	ErrNotFound = errors.New("cache: key not found")

	// ErrConnection wraps any backend transport or protocol failure.
	ErrConnection = errors.New("cache: backend unavailable")

	// ErrSerialization reports a stored value that does not decode into
	// the shape the caller asked for.
	ErrSerialization = errors.New("cache: cannot decode stored value")

	// ErrCompute reports that a caller-supplied compute callback failed.
	ErrCompute = errors.New("cache: compute callback failed")

	// ErrClosed is returned by every operation issued after Close.
	ErrClosed = errors.New("cache: store is closed")
)

// Driver is the contract every backend must implement. All methods are safe
// for concurrent use by multiple callers; each call may block up to the
// driver's configured timeout. Drivers normalize backend-native failures
// into the sentinel errors above before returning, so callers never see
// client-library error types.
//
// A driver is scoped to one named store: every key it writes carries that
// store's namespace prefix, and Flush touches that namespace only.
type Driver interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key with the given TTL as a single atomic
	// backend write; there is no window where the key is durable without
	// its expiry. A non-positive ttl stores the key without expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// PutForever stores value under key with no expiry metadata, which
	// is distinct from a very large TTL.
	PutForever(ctx context.Context, key, value string) error

	// Forget removes key. Removing an absent key is not an error.
	Forget(ctx context.Context, key string) error

	// Has reports whether key exists, without transferring its value.
	Has(ctx context.Context, key string) (bool, error)

	// Increment atomically adds delta (which may be negative) to the
	// integer stored under key and returns the new value. An absent key
	// is initialized to zero before the delta is applied.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Decrement atomically subtracts delta from the integer stored under
	// key and returns the new value, which may go negative.
	Decrement(ctx context.Context, key string, delta int64) (int64, error)

	// Flush removes every key in the driver's namespace and nothing
	// else. It enumerates the keyspace incrementally in bounded batches
	// and honors ctx cancellation between rounds, so it never issues a
	// single blocking full-keyspace operation against a shared backend.
	Flush(ctx context.Context) error

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error

	// Close releases the underlying connection resource. Operations on a
	// closed driver fail with ErrClosed; a driver never silently
	// reconnects.
	Close() error
}

// Sweeper is implemented only by drivers whose backend does not enforce
// TTLs natively. Sweep deletes every entry whose expiry has passed and
// returns the number removed. Drivers with native expiry (redis, memory)
// deliberately do not implement Sweeper; schedulers type-assert for it to
// learn whether periodic sweeping is required or purely advisory.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
