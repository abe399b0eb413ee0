package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const entriesTable = "cachet_entries"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS cachet_entries (
		key        text PRIMARY KEY,
		value      text NOT NULL,
		expires_at timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS cachet_entries_expires_at_idx
		ON cachet_entries (expires_at)
		WHERE expires_at IS NOT NULL`,
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
