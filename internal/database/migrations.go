package database

import (
	"context"
	"fmt"
)

var tables = []struct {
	name   string
	schema string
}{
	{
		name: "transfer_journal",
		schema: `
			CREATE TABLE transfer_journal (
				id UUID PRIMARY KEY,
				cart_item_id VARCHAR(64) NOT NULL,
				item_name VARCHAR(255) NOT NULL,
				group_name VARCHAR(255) NOT NULL,
				pantry_item_id VARCHAR(64) NOT NULL DEFAULT '',
				stage VARCHAR(20) NOT NULL CHECK (stage IN ('pantry', 'cart')),
				message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				resolved_at TIMESTAMPTZ
			);

			CREATE INDEX idx_transfer_journal_cart_item_id ON transfer_journal(cart_item_id);
			CREATE INDEX idx_transfer_journal_unresolved ON transfer_journal(created_at) WHERE resolved_at IS NULL;
		`,
	},
	{
		name: "transfer_history",
		schema: `
			CREATE TABLE transfer_history (
				id UUID PRIMARY KEY,
				user_id VARCHAR(64) NOT NULL,
				item_name VARCHAR(255) NOT NULL,
				category VARCHAR(100) NOT NULL,
				transferred_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			);

			CREATE INDEX idx_transfer_history_user_id ON transfer_history(user_id);
			CREATE INDEX idx_transfer_history_item_name ON transfer_history(user_id, LOWER(item_name));
		`,
	},
}

func Migrate(ctx context.Context, db *DB) error {
	for _, table := range tables {
		var exists bool
		err := db.QueryRow(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table.name).Scan(&exists)

		if err != nil {
			return fmt.Errorf("failed to check %s table: %w", table.name, err)
		}

		if exists {
			continue
		}

		if _, err := db.Exec(ctx, table.schema); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	return nil
}
