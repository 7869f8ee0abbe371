package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nmoreyra/catalogpulse/internal/kpi"
)

// kpiColumns is the column order shared by the COPY and the merge.
var kpiColumns = []string{
	"kpi_date",
	"catalog_id",
	"product_name",
	"category_primary",
	"category_secondary",
	"competitor_count",
	"min_price",
	"avg_price",
	"max_price",
	"our_price",
	"our_rank",
	"pct_fast_shipping",
	"pct_platform_fulfilled",
	"pct_free_shipping",
	"pct_invoice_a",
	"market_leader_offer_id",
	"market_leader_seller_name",
	"price_gap_vs_leader",
	"avg_reputation_score",
}

// KPIStore persists the daily KPI snapshot.
type KPIStore struct {
	pool  Pool
	table string
}

// NewKPIStore constructs a KPIStore on an existing pool.
func NewKPIStore(pool Pool, table string) (*KPIStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "daily_product_kpis"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &KPIStore{pool: pool, table: table}, nil
}

// UpsertBatch merges the rows into the snapshot table keyed by
// (kpi_date, catalog_id). The batch is staged into a temp table with COPY
// and merged in the same transaction, so a re-run for the same date
// overwrites every derived column atomically.
func (s *KPIStore) UpsertBatch(ctx context.Context, rows []kpi.DailyProductKPI) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin kpi upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stage := "staging_" + s.table
	createStage := fmt.Sprintf(
		`CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP`,
		stage, s.table,
	)
	if _, err := tx.Exec(ctx, createStage); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	_, err = tx.CopyFrom(ctx, pgx.Identifier{stage}, kpiColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{
				row.Date,
				row.CatalogID,
				row.ProductName,
				row.CategoryPrimary,
				row.CategorySecondary,
				row.CompetitorCount,
				row.MinPrice,
				row.AvgPrice,
				row.MaxPrice,
				row.OurPrice,
				row.OurRank,
				row.PctFastShipping,
				row.PctPlatformFulfilled,
				row.PctFreeShipping,
				row.PctInvoiceA,
				row.MarketLeaderOfferID,
				row.MarketLeaderSellerName,
				row.PriceGapVsLeader,
				row.AvgReputationScore,
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy kpi rows: %w", err)
	}

	if _, err := tx.Exec(ctx, s.mergeQuery(stage)); err != nil {
		return fmt.Errorf("merge kpi rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit kpi upsert: %w", err)
	}
	return nil
}

// mergeQuery builds the INSERT ... ON CONFLICT DO UPDATE that moves the
// staged rows into the snapshot table. Every non-key column is replaced by
// the staged value.
func (s *KPIStore) mergeQuery(stage string) string {
	cols := ""
	updates := ""
	for i, col := range kpiColumns {
		if i > 0 {
			cols += ", "
		}
		cols += col
		if col == "kpi_date" || col == "catalog_id" {
			continue
		}
		if updates != "" {
			updates += ", "
		}
		updates += fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	updates += ", updated_at = NOW()"
	return fmt.Sprintf(`
INSERT INTO %s (%s)
SELECT %s FROM %s
ON CONFLICT (kpi_date, catalog_id) DO UPDATE SET %s`,
		s.table, cols, cols, stage, updates)
}
