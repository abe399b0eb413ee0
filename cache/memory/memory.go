// Package memory provides an in-process cache.Driver. It is the default
// substitution point for the facade and session layers in tests, and a
// usable single-process backend in its own right. Expired entries are
// dropped lazily on read and by a janitor goroutine, so TTLs behave
// natively and the driver does not implement cache.Sweeper.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adeilh/go-cachet/cache"
)

const janitorInterval = 30 * time.Second

var _ cache.Driver = (*Driver)(nil)

// Driver is a mutex-guarded map store for one named store.
type Driver struct {
	keys cache.Keyspace
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
	done    chan struct{}
}

type entry struct {
	value     string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// New returns a driver scoped to the named store.
func New(store string) (*Driver, error) {
	keys, err := cache.NewKeyspace(store)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		keys:    keys,
		now:     time.Now,
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	go d.janitor()
	return d, nil
}

// Keyspace returns the namespace the driver writes under.
func (d *Driver) Keyspace() cache.Keyspace { return d.keys }

func (d *Driver) Get(_ context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", cache.ErrClosed
	}
	e, ok := d.entries[d.keys.Key(key)]
	if !ok || e.expired(d.now()) {
		return "", cache.ErrNotFound
	}
	return e.value, nil
}

func (d *Driver) Put(_ context.Context, key, value string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return cache.ErrClosed
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = d.now().Add(ttl)
	}
	d.entries[d.keys.Key(key)] = &entry{value: value, expiresAt: expiresAt}
	return nil
}

func (d *Driver) PutForever(ctx context.Context, key, value string) error {
	return d.Put(ctx, key, value, 0)
}

func (d *Driver) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return cache.ErrClosed
	}
	delete(d.entries, d.keys.Key(key))
	return nil
}

func (d *Driver) Has(_ context.Context, key string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false, cache.ErrClosed
	}
	e, ok := d.entries[d.keys.Key(key)]
	return ok && !e.expired(d.now()), nil
}

func (d *Driver) Increment(_ context.Context, key string, delta int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, cache.ErrClosed
	}
	physical := d.keys.Key(key)
	var current int64
	existing, ok := d.entries[physical]
	if ok && !existing.expired(d.now()) {
		parsed, err := strconv.ParseInt(existing.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: value under %q is not an integer", cache.ErrSerialization, key)
		}
		current = parsed
		// Counters keep whatever expiry the entry already carried.
		existing.value = strconv.FormatInt(current+delta, 10)
		return current + delta, nil
	}
	d.entries[physical] = &entry{value: strconv.FormatInt(delta, 10)}
	return delta, nil
}

func (d *Driver) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return d.Increment(ctx, key, -delta)
}

func (d *Driver) Flush(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return cache.ErrClosed
	}
	prefix := d.keys.Prefix()
	for key := range d.entries {
		if strings.HasPrefix(key, prefix) {
			delete(d.entries, key)
		}
	}
	return nil
}

func (d *Driver) Ping(_ context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return cache.ErrClosed
	}
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.entries = nil
	close(d.done)
	return nil
}

func (d *Driver) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.closed {
				d.mu.Unlock()
				return
			}
			now := d.now()
			for key, e := range d.entries {
				if e.expired(now) {
					delete(d.entries, key)
				}
			}
			d.mu.Unlock()
		}
	}
}
