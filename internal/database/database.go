// Package database archives final match outcomes in Postgres. The archive
// is optional: a nil pool disables it, and the live session never depends
// on anything stored here.
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool. Nil when archival is disabled.
var DB *pgxpool.Pool

// Connect initializes the package-level pool and ensures the schema.
func Connect(ctx context.Context, url string) error {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS match_results (
			session_id UUID PRIMARY KEY,
			result     JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		pool.Close()
		return fmt.Errorf("ensure match_results table: %w", err)
	}
	DB = pool
	return nil
}

// StoreMatchResult upserts the final outcome snapshot for a session.
func StoreMatchResult(ctx context.Context, sessionID uuid.UUID, result any) error {
	if DB == nil {
		return fmt.Errorf("database pool not initialized")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal match result: %w", err)
	}
	_, err = DB.Exec(ctx, `
		INSERT INTO match_results (session_id, result)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET result = EXCLUDED.result`,
		sessionID, raw)
	if err != nil {
		return fmt.Errorf("store match result: %w", err)
	}
	return nil
}
