package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adeilh/go-cachet/cache"
)

var (
	_ cache.Driver  = (*Driver)(nil)
	_ cache.Sweeper = (*Driver)(nil)
)

// Driver is a PostgreSQL-backed cache store for one named store. All stores
// share the cachet_entries table; the namespace prefix keeps them disjoint.
type Driver struct {
	db         *sql.DB
	keys       cache.Keyspace
	flushBatch int
	closed     atomic.Bool
}

// New connects to PostgreSQL, ensures the cache schema exists, and returns
// a driver scoped to the named store.
func New(ctx context.Context, store string, opts ...Option) (*Driver, error) {
	keys, err := cache.NewKeyspace(store)
	if err != nil {
		return nil, err
	}

	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Driver{db: db, keys: keys, flushBatch: cfg.FlushBatch}, nil
}

// FromDB wraps an existing database handle. The driver takes ownership:
// Close closes the handle.
func FromDB(ctx context.Context, store string, db *sql.DB) (*Driver, error) {
	keys, err := cache.NewKeyspace(store)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Driver{db: db, keys: keys, flushBatch: defaultOptions().FlushBatch}, nil
}

// Keyspace returns the namespace the driver writes under.
func (d *Driver) Keyspace() cache.Keyspace { return d.keys }

func (d *Driver) Get(ctx context.Context, key string) (string, error) {
	if d.closed.Load() {
		return "", cache.ErrClosed
	}
	const q = `SELECT value FROM cachet_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`
	var value string
	err := d.db.QueryRowContext(ctx, q, d.keys.Key(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", cache.ErrNotFound
	}
	if err != nil {
		return "", connErr("get", err)
	}
	return value, nil
}

// Put upserts value and expiry in one statement, so the row is never
// visible without its intended expiry.
func (d *Driver) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	if ttl <= 0 {
		return d.PutForever(ctx, key, value)
	}
	const q = `INSERT INTO cachet_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	if _, err := d.db.ExecContext(ctx, q, d.keys.Key(key), value, time.Now().Add(ttl)); err != nil {
		return connErr("put", err)
	}
	return nil
}

func (d *Driver) PutForever(ctx context.Context, key, value string) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	const q = `INSERT INTO cachet_entries (key, value, expires_at)
		VALUES ($1, $2, NULL)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = NULL`
	if _, err := d.db.ExecContext(ctx, q, d.keys.Key(key), value); err != nil {
		return connErr("put", err)
	}
	return nil
}

func (d *Driver) Forget(ctx context.Context, key string) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	const q = `DELETE FROM cachet_entries WHERE key = $1`
	if _, err := d.db.ExecContext(ctx, q, d.keys.Key(key)); err != nil {
		return connErr("forget", err)
	}
	return nil
}

func (d *Driver) Has(ctx context.Context, key string) (bool, error) {
	if d.closed.Load() {
		return false, cache.ErrClosed
	}
	const q = `SELECT EXISTS (
		SELECT 1 FROM cachet_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now()))`
	var ok bool
	if err := d.db.QueryRowContext(ctx, q, d.keys.Key(key)).Scan(&ok); err != nil {
		return false, connErr("has", err)
	}
	return ok, nil
}

// Increment applies the delta in one upsert so concurrent callers never
// lose updates. An expired row counts as absent and restarts from zero
// with its expiry cleared, matching how a TTL-enforcing backend behaves.
func (d *Driver) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if d.closed.Load() {
		return 0, cache.ErrClosed
	}
	const q = `INSERT INTO cachet_entries (key, value, expires_at)
		VALUES ($1, ($2::bigint)::text, NULL)
		ON CONFLICT (key) DO UPDATE
		SET value = (CASE
				WHEN cachet_entries.expires_at IS NOT NULL AND cachet_entries.expires_at <= now()
				THEN 0
				ELSE cachet_entries.value::bigint
			END + $2::bigint)::text,
			expires_at = CASE
				WHEN cachet_entries.expires_at IS NOT NULL AND cachet_entries.expires_at <= now()
				THEN NULL
				ELSE cachet_entries.expires_at
			END
		RETURNING value::bigint`
	var value int64
	if err := d.db.QueryRowContext(ctx, q, d.keys.Key(key), delta).Scan(&value); err != nil {
		return 0, connErr("increment", err)
	}
	return value, nil
}

func (d *Driver) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return d.Increment(ctx, key, -delta)
}

// Flush deletes the store's rows in FlushBatch-sized rounds, checking ctx
// between rounds, so one large store cannot hold a long lock over the
// shared table.
func (d *Driver) Flush(ctx context.Context) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	const q = `DELETE FROM cachet_entries WHERE ctid IN (
		SELECT ctid FROM cachet_entries WHERE key LIKE $1 LIMIT $2)`
	pattern := likePrefix(d.keys.Prefix()) + "%"
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := d.db.ExecContext(ctx, q, pattern, d.flushBatch)
		if err != nil {
			return connErr("flush", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return connErr("flush", err)
		}
		if n == 0 {
			return nil
		}
	}
}

// Sweep deletes every expired row in the table. It is shared maintenance:
// expired rows of all stores are removed, since an expired row is garbage
// regardless of which store wrote it.
func (d *Driver) Sweep(ctx context.Context) (int64, error) {
	if d.closed.Load() {
		return 0, cache.ErrClosed
	}
	const q = `DELETE FROM cachet_entries
		WHERE expires_at IS NOT NULL AND expires_at <= now()`
	res, err := d.db.ExecContext(ctx, q)
	if err != nil {
		return 0, connErr("sweep", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, connErr("sweep", err)
	}
	return n, nil
}

func (d *Driver) Ping(ctx context.Context) error {
	if d.closed.Load() {
		return cache.ErrClosed
	}
	if err := d.db.PingContext(ctx); err != nil {
		return connErr("ping", err)
	}
	return nil
}

func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// likePrefix escapes LIKE wildcards so logical keys containing % or _
// cannot widen the flush pattern.
func likePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func connErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", cache.ErrConnection, op, err)
}
