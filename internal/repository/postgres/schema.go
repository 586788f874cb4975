package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so every terminal
// can run them on boot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		table_id UUID,
		status TEXT NOT NULL,
		covers INT NOT NULL DEFAULT 1,
		invoice_number BIGINT NOT NULL,
		tax_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		discount_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		service_charge_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		tip_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		tags TEXT[] NOT NULL DEFAULT '{}',
		order_type TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE SEQUENCE IF NOT EXISTS invoice_numbers`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		seat INT,
		payload JSONB NOT NULL,
		position BIGSERIAL
	)`,
	`CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items (order_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		payment_type JSONB NOT NULL,
		amount DOUBLE PRECISION NOT NULL,
		payable DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_extras (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL REFERENCES orders(id),
		name TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_audit (
		id UUID PRIMARY KEY,
		action TEXT NOT NULL,
		target_order_id UUID NOT NULL,
		related_order_ids JSONB NOT NULL,
		actor TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
}

// ApplySchema creates the tables and sequence this package relies on.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
