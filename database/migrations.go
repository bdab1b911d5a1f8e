package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []struct {
	name  string
	query string
}{
	{
		name: "create items table",
		query: `CREATE TABLE IF NOT EXISTS items (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seq BIGSERIAL,
		created_at TIMESTAMPTZ DEFAULT now(),
		updated_at TIMESTAMPTZ DEFAULT now(),
		deleted_at TIMESTAMPTZ,
		parent_id UUID REFERENCES items(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		extra JSONB NOT NULL DEFAULT '{}',
		settings JSONB NOT NULL DEFAULT '{}',
		creator UUID NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT false
	)`,
	},
	{
		// children are listed in insertion order
		name:  "index items by parent",
		query: `CREATE INDEX IF NOT EXISTS items_parent_seq_idx ON items (parent_id, seq)`,
	},
}

// Migrations brings the items schema up to date. Every statement is
// idempotent.
func Migrations(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("failed to execute migration %q: %w", m.name, err)
		}
	}
	return nil
}
