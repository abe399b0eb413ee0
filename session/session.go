// Package session stores per-id session payloads through any cache.Driver.
// A payload is a (data, flash) pair serialized under one key per session
// id; expiry rides on the backend's TTL mechanism where the backend has
// one, and on GC sweeps where it does not.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adeilh/go-cachet/cache"
)

// keyPrefix puts session payloads under their own logical segment, so a
// store's sessions and its cache entries never collide:
// cachet:<store>:session:<id>.
const keyPrefix = "session:"

var ErrInvalidID = errors.New("session: invalid session id")

// Options configures a Store.
type Options struct {
	// DefaultLifetime applies when Save is called with a non-positive
	// lifetime.
	DefaultLifetime time.Duration
	Logger          *slog.Logger
}

type Option func(*Options)

// WithDefaultLifetime sets the lifetime used when Save receives none.
func WithDefaultLifetime(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DefaultLifetime = d
		}
	}
}

// WithLogger routes degraded-load reports to the given logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// Store reads and writes session payloads through a cache driver. It is
// constructed once at startup and handed to whatever needs session access;
// there is no package-level registry.
type Store struct {
	driver   cache.Driver
	lifetime time.Duration
	log      *slog.Logger
}

// New builds a Store on top of driver.
func New(driver cache.Driver, opts ...Option) *Store {
	cfg := Options{
		DefaultLifetime: time.Hour,
		Logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Store{driver: driver, lifetime: cfg.DefaultLifetime, log: cfg.Logger}
}

type payload struct {
	Data  map[string]any `json:"data"`
	Flash map[string]any `json:"flash"`
}

func key(id string) string { return keyPrefix + id }

// Load returns the data and flash mappings for id. It never returns an
// error: a missing, expired, unreachable, or undecodable session degrades
// to a fresh one, so callers always get usable maps.
func (s *Store) Load(ctx context.Context, id string) (data, flash map[string]any) {
	if id == "" {
		return map[string]any{}, map[string]any{}
	}

	raw, err := s.driver.Get(ctx, key(id))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.log.Warn("session: load failed, starting fresh", "id", id, "error", err)
		}
		return map[string]any{}, map[string]any{}
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.Warn("session: undecodable payload, starting fresh", "id", id, "error", err)
		return map[string]any{}, map[string]any{}
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	if p.Flash == nil {
		p.Flash = map[string]any{}
	}
	return p.Data, p.Flash
}

// Save serializes (data, flash) into one payload and writes it with
// TTL = lifetime in a single atomic put, replacing any previous payload
// wholesale. A non-positive lifetime uses the store default.
func (s *Store) Save(ctx context.Context, id string, data, flash map[string]any, lifetime time.Duration) error {
	if id == "" {
		return ErrInvalidID
	}
	if lifetime <= 0 {
		lifetime = s.lifetime
	}
	raw, err := json.Marshal(payload{Data: data, Flash: flash})
	if err != nil {
		return fmt.Errorf("%w: %v", cache.ErrSerialization, err)
	}
	return s.driver.Put(ctx, key(id), string(raw), lifetime)
}

// Destroy removes the session. Destroying an absent session succeeds.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	return s.driver.Forget(ctx, key(id))
}

// SweepRequired reports whether GC does real work for this store's
// backend. When false the backend expires payloads natively and GC is
// purely advisory; when true a scheduler must invoke GC periodically or
// expired payloads accumulate.
func (s *Store) SweepRequired() bool {
	_, ok := s.driver.(cache.Sweeper)
	return ok
}

// GC removes expired payloads on backends without native expiry and
// reports how many were removed; on TTL-enforcing backends it is a no-op.
func (s *Store) GC(ctx context.Context) (int64, error) {
	sw, ok := s.driver.(cache.Sweeper)
	if !ok {
		return 0, nil
	}
	return sw.Sweep(ctx)
}
