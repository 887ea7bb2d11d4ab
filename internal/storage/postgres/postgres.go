// Package postgres implements the domain repositories on PostgreSQL via
// pgx. All money columns are numeric and scanned into decimals; indicator
// snapshots and copy-trade configs are stored as jsonb.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id           UUID PRIMARY KEY,
	symbol       TEXT NOT NULL,
	type         TEXT NOT NULL,
	price        NUMERIC NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	indicators   JSONB NOT NULL,
	status       TEXT NOT NULL,
	trader_id    UUID,
	strategy_id  UUID,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	executed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_signals_symbol_created ON signals (symbol, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals (status);

CREATE TABLE IF NOT EXISTS trades (
	id                UUID PRIMARY KEY,
	user_id           UUID NOT NULL,
	signal_id         UUID,
	trader_id         UUID,
	symbol            TEXT NOT NULL,
	side              TEXT NOT NULL,
	order_type        TEXT NOT NULL,
	exchange_order_id TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	requested_amount  NUMERIC NOT NULL,
	executed_qty      NUMERIC NOT NULL DEFAULT 0,
	executed_price    NUMERIC NOT NULL DEFAULT 0,
	executed_value    NUMERIC NOT NULL DEFAULT 0,
	commission        NUMERIC NOT NULL DEFAULT 0,
	commission_asset  TEXT NOT NULL DEFAULT '',
	close_price       NUMERIC,
	closed_at         TIMESTAMPTZ,
	realized_pnl      NUMERIC,
	realized_pnl_pct  NUMERIC,
	mode              TEXT NOT NULL,
	error_message     TEXT NOT NULL DEFAULT '',
	executed_at       TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, signal_id)
);
CREATE INDEX IF NOT EXISTS idx_trades_user_created ON trades (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS follows (
	follower_id UUID NOT NULL,
	trader_id   UUID NOT NULL,
	config      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (follower_id, trader_id)
);

CREATE TABLE IF NOT EXISTS api_keys (
	id                   UUID PRIMARY KEY,
	user_id              UUID NOT NULL,
	api_key_encrypted    TEXT NOT NULL,
	api_secret_encrypted TEXT NOT NULL,
	is_active            BOOLEAN NOT NULL DEFAULT TRUE,
	created_at           TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user_active ON api_keys (user_id, is_active);
`

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return pool, nil
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
