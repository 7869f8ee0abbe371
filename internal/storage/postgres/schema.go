package postgres

import (
	"context"
	"fmt"
)

// Bootstrap creates the raw and KPI tables when they do not exist yet.
// The unique constraint on (extraction_date, offer_id) is the write-once
// backstop for concurrent ingests of the same day.
func Bootstrap(ctx context.Context, pool Pool, rawTable, kpiTable string) error {
	if !validTableName.MatchString(rawTable) {
		return fmt.Errorf("invalid table name %q", rawTable)
	}
	if !validTableName.MatchString(kpiTable) {
		return fmt.Errorf("invalid table name %q", kpiTable)
	}

	rawDDL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	extraction_date DATE NOT NULL,
	catalog_id TEXT NOT NULL,
	offer_id TEXT NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	category_primary TEXT NOT NULL DEFAULT '',
	category_secondary TEXT NOT NULL DEFAULT '',
	price DOUBLE PRECISION NOT NULL,
	seller_name TEXT NOT NULL DEFAULT '',
	reputation_tier TEXT NOT NULL DEFAULT 'unrated',
	condition TEXT NOT NULL DEFAULT '',
	shipping_free BOOLEAN NOT NULL DEFAULT FALSE,
	shipping_fulfilled_by_platform BOOLEAN NOT NULL DEFAULT FALSE,
	shipping_fast BOOLEAN NOT NULL DEFAULT FALSE,
	invoice_type_a BOOLEAN NOT NULL DEFAULT FALSE,
	installments_no_interest INTEGER NOT NULL DEFAULT 0,
	listing_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (extraction_date, offer_id)
)`, rawTable)
	if _, err := pool.Exec(ctx, rawDDL); err != nil {
		return fmt.Errorf("create raw table: %w", err)
	}

	rawIdx := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_catalog_date_idx ON %s (catalog_id, extraction_date)`,
		rawTable, rawTable,
	)
	if _, err := pool.Exec(ctx, rawIdx); err != nil {
		return fmt.Errorf("create raw index: %w", err)
	}

	kpiDDL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	kpi_date DATE NOT NULL,
	catalog_id TEXT NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	category_primary TEXT NOT NULL DEFAULT '',
	category_secondary TEXT NOT NULL DEFAULT '',
	competitor_count INTEGER NOT NULL,
	min_price DOUBLE PRECISION NOT NULL,
	avg_price DOUBLE PRECISION NOT NULL,
	max_price DOUBLE PRECISION NOT NULL,
	our_price DOUBLE PRECISION,
	our_rank INTEGER,
	pct_fast_shipping DOUBLE PRECISION NOT NULL,
	pct_platform_fulfilled DOUBLE PRECISION NOT NULL,
	pct_free_shipping DOUBLE PRECISION NOT NULL,
	pct_invoice_a DOUBLE PRECISION NOT NULL,
	market_leader_offer_id TEXT NOT NULL DEFAULT '',
	market_leader_seller_name TEXT NOT NULL DEFAULT '',
	price_gap_vs_leader DOUBLE PRECISION,
	avg_reputation_score DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kpi_date, catalog_id)
)`, kpiTable)
	if _, err := pool.Exec(ctx, kpiDDL); err != nil {
		return fmt.Errorf("create kpi table: %w", err)
	}
	return nil
}
