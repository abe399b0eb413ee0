// Package redis implements cache.Driver on top of the go-redis client.
// Protocol and connection pooling are the client's concern; this package
// only scopes keys to one store's namespace and translates client errors
// into the cache error taxonomy. Redis enforces TTLs natively, so the
// driver does not implement cache.Sweeper.
package redis

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adeilh/go-cachet/cache"
)

const defaultScanCount = 100

var _ cache.Driver = (*Driver)(nil)

// Driver is a Redis-backed cache store for one named store.
type Driver struct {
	client    *redis.Client
	keys      cache.Keyspace
	scanCount int64
	closed    atomic.Bool
}

// New connects to the Redis server described by opts and returns a driver
// scoped to the named store.
func New(store string, opts Options) (*Driver, error) {
	cfg := opts.withDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})
	return FromClient(store, client, cfg.ScanCount)
}

// FromURL connects using a redis:// connection URL.
func FromURL(store, url string) (*Driver, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return FromClient(store, redis.NewClient(opts), 0)
}

// FromClient wraps an existing client. The driver takes ownership: Close
// closes the client. A non-positive scanCount uses the default batch size.
func FromClient(store string, client *redis.Client, scanCount int64) (*Driver, error) {
	keys, err := cache.NewKeyspace(store)
	if err != nil {
		return nil, err
	}
	if scanCount <= 0 {
		scanCount = defaultScanCount
	}
	return &Driver{client: client, keys: keys, scanCount: scanCount}, nil
}

// Keyspace returns the namespace the driver writes under.
func (d *Driver) Keyspace() cache.Keyspace { return d.keys }

func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	if d.closed.Load() {
		return "", cache.ErrClosed
	}
	val, err := d.client.Get(ctx, d.keys.Key(key)).Result()
	if err == redis.Nil {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", connErr("get", err)
	}
	return val, nil
}

// Put issues a single SET with expiry, so the key and its TTL become
// visible as one write.
func (d *Driver) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := d.client.Set(ctx, d.keys.Key(key), value, ttl).Err(); err != nil {
		return connErr("set", err)
	}
	return nil
}

func (d *Driver) PutForever(ctx context.Context, key, value string) error {
	return d.Put(ctx, key, value, 0)
}

func (d *Driver) Forget(ctx context.Context, key string) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	// DEL reports how many keys were removed; zero is still success.
	if err := d.client.Del(ctx, d.keys.Key(key)).Err(); err != nil {
		return connErr("del", err)
	}
	return nil
}

func (d *Driver) Has(ctx context.Context, key string) (bool, error) {
	if d.closed.Load() {
		return false, cache.ErrClosed
	}
	n, err := d.client.Exists(ctx, d.keys.Key(key)).Result()
	if err != nil {
		return false, connErr("exists", err)
	}
	return n > 0, nil
}

func (d *Driver) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if d.closed.Load() {
		return 0, cache.ErrClosed
	}
	val, err := d.client.IncrBy(ctx, d.keys.Key(key), delta).Result()
	if err != nil {
		return 0, connErr("incrby", err)
	}
	return val, nil
}

func (d *Driver) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	if d.closed.Load() {
		return 0, cache.ErrClosed
	}
	val, err := d.client.DecrBy(ctx, d.keys.Key(key), delta).Result()
	if err != nil {
		return 0, connErr("decrby", err)
	}
	return val, nil
}

// Flush walks the store's namespace with SCAN in ScanCount-sized batches
// and deletes each batch, checking ctx between round trips. It terminates
// when the server returns the zero cursor, so concurrent callers on a
// shared backend are never starved by one blocking full-keyspace pass.
func (d *Driver) Flush(ctx context.Context) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	var cursor uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		keys, next, err := d.client.Scan(ctx, cursor, d.keys.Pattern(), d.scanCount).Result()
		if err != nil {
			return connErr("scan", err)
		}
		if len(keys) > 0 {
			if err := d.client.Del(ctx, keys...).Err(); err != nil {
				return connErr("del", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (d *Driver) Ping(ctx context.Context) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	if err := d.client.Ping(ctx).Err(); err != nil {
		return connErr("ping", err)
	}
	return nil
}

func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.client.Close()
}

func connErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", cache.ErrConnection, op, err)
}
