// Package config loads per-store boot settings from the environment. Load
// always returns an error rather than panicking; the boot sequence decides
// whether a missing setting is fatal.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v7"
)

// Store holds the boot settings for one named cache store. BackendURL is
// required; a missing value surfaces as an error naming the variable.
type Store struct {
	Name            string        `env:"STORE_NAME" envDefault:"app"`
	BackendURL      string        `env:"BACKEND_URL,required"`
	PoolSize        int           `env:"POOL_SIZE" envDefault:"8"`
	OpTimeout       time.Duration `env:"OP_TIMEOUT" envDefault:"2s"`
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"1h"`
}

// Load parses the environment into a Store configuration. Variables are
// read under the given prefix (e.g. prefix "CACHET_" reads
// CACHET_BACKEND_URL), so several named stores can boot from one
// environment with distinct prefixes.
func Load(prefix string) (Store, error) {
	return load(prefix, nil)
}

// LoadWithEnv is Load with an explicit variable map instead of the process
// environment, for tests and embedding.
func LoadWithEnv(prefix string, environment map[string]string) (Store, error) {
	return load(prefix, environment)
}

func load(prefix string, environment map[string]string) (Store, error) {
	var s Store
	opts := env.Options{Prefix: prefix, Environment: environment}
	if err := env.Parse(&s, opts); err != nil {
		return Store{}, fmt.Errorf("config: %w", err)
	}
	return s, nil
}
