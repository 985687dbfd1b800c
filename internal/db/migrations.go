package db

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order after schema creation. Each one must be
// idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: lowercase emails stored before addresses were normalized.
	`UPDATE accounts SET email = lower(email) WHERE email <> lower(email)`,
	// Migration 2: admin order listing filters by status.
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at)`,
}

// Migrate ensures the schema and runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
