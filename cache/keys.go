package cache

import (
	"errors"
	"fmt"
	"strings"
)

// Namespace is the fixed first segment of every physical key written
// through this module, so unrelated data sharing the same backend is never
// touched by a Flush.
const Namespace = "cachet"

// keySep terminates the store segment, so store "a" can never glob-match
// keys belonging to store "ab".
const keySep = ":"

var ErrInvalidStore = errors.New("cache: invalid store name")

// Keyspace derives the physical key layout for one named store:
// cachet:<store>:<logical-key>. Two Keyspaces with distinct store names can
// never observe each other's keys.
type Keyspace struct {
	store string
}

// NewKeyspace validates name and returns its Keyspace. Names must be
// non-empty and free of the separator, glob metacharacters, and SQL LIKE
// wildcards, so a store name can never widen a flush pattern.
func NewKeyspace(name string) (Keyspace, error) {
	if name == "" || strings.ContainsAny(name, `:*?[]\%_`) {
		return Keyspace{}, fmt.Errorf("%w: %q", ErrInvalidStore, name)
	}
	return Keyspace{store: name}, nil
}

// Store returns the store name the Keyspace was built for.
func (k Keyspace) Store() string { return k.store }

// Key maps a logical key to its physical form.
func (k Keyspace) Key(logical string) string {
	return Namespace + keySep + k.store + keySep + logical
}

// Prefix returns the literal prefix shared by every physical key of this
// store, for backends that filter by prefix rather than glob pattern.
func (k Keyspace) Prefix() string {
	return Namespace + keySep + k.store + keySep
}

// Pattern returns the glob matching every physical key of this store.
func (k Keyspace) Pattern() string {
	return k.Prefix() + "*"
}
