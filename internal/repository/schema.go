package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultFeeRateBps seeds the fee configuration row on first migration.
const defaultFeeRateBps = 250

// schema is the full marketplace DDL. Statements are idempotent so Migrate
// can run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS listings (
    collection  TEXT           NOT NULL,
    token_id    NUMERIC(78, 0) NOT NULL,
    seller      TEXT           NOT NULL,
    price       NUMERIC(78, 0) NOT NULL CHECK (price > 0),
    currency    TEXT           NOT NULL,
    created_at  TIMESTAMPTZ    NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ    NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, token_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_seller   ON listings (seller);
CREATE INDEX IF NOT EXISTS idx_listings_currency ON listings (currency);

CREATE TABLE IF NOT EXISTS fee_config (
    id        INT PRIMARY KEY CHECK (id = 1),
    rate_bps  INT NOT NULL CHECK (rate_bps >= 0 AND rate_bps <= 1000),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fee_accruals (
    currency  TEXT PRIMARY KEY,
    balance   NUMERIC(78, 0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS allowed_currencies (
    currency   TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS market_events (
    seq        BIGSERIAL PRIMARY KEY,
    id         UUID        NOT NULL UNIQUE,
    type       TEXT        NOT NULL,
    addresses  TEXT[]      NOT NULL DEFAULT '{}',
    payload    JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_market_events_type      ON market_events (type);
CREATE INDEX IF NOT EXISTS idx_market_events_addresses ON market_events USING GIN (addresses);
`

// Migrate applies the schema and seeds the fee configuration singleton.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO fee_config (id, rate_bps) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		defaultFeeRateBps,
	)
	if err != nil {
		return fmt.Errorf("seed fee config: %w", err)
	}
	return nil
}
