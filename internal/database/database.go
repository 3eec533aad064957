// Package database owns the pgx connection pool and the in-code schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the image_metadata table if needed. Keeping the
// migration in code lets docker-compose bootstrap a fresh stack with no extra
// tooling. The primary key doubles as the append-once guard for records.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS image_metadata (
	asset_key TEXT PRIMARY KEY,
	owner_identity TEXT NOT NULL,
	owner_role TEXT NOT NULL,
	file_name TEXT NOT NULL,
	original_size_kb DOUBLE PRECISION NOT NULL,
	output_variants_kb JSONB,
	savings_percent TEXT NOT NULL,
	processing_time_ms DOUBLE PRECISION NOT NULL,
	quality_used INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_image_metadata_owner ON image_metadata(owner_identity);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
