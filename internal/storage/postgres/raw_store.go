package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/nmoreyra/catalogpulse/internal/offer"
)

// RawStore persists the immutable per-day offer rows.
type RawStore struct {
	pool  Pool
	table string
}

// NewRawStore constructs a RawStore on an existing pool.
func NewRawStore(pool Pool, table string) (*RawStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "raw_offers"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RawStore{pool: pool, table: table}, nil
}

// Exists reports whether any row exists for the catalog on the given day.
func (s *RawStore) Exists(ctx context.Context, catalogID string, day time.Time) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE catalog_id = $1 AND extraction_date = $2)`,
		s.table,
	)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, catalogID, day).Scan(&exists); err != nil {
		return false, fmt.Errorf("check existing offers: %w", err)
	}
	return exists, nil
}

// InsertBatch writes the rows in a single transaction. A unique-constraint
// violation on (extraction_date, offer_id) aborts the whole batch and is
// reported as ErrDuplicateOffer.
func (s *RawStore) InsertBatch(ctx context.Context, rows []offer.RawOffer) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin raw insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`
INSERT INTO %s (
	extraction_date,
	catalog_id,
	offer_id,
	product_name,
	category_primary,
	category_secondary,
	price,
	seller_name,
	reputation_tier,
	condition,
	shipping_free,
	shipping_fulfilled_by_platform,
	shipping_fast,
	invoice_type_a,
	installments_no_interest,
	listing_url
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)`, s.table)

	for _, row := range rows {
		_, err := tx.Exec(ctx, query,
			row.ExtractionDate,
			row.CatalogID,
			row.OfferID,
			row.ProductName,
			row.CategoryPrimary,
			row.CategorySecondary,
			row.Price,
			row.SellerName,
			string(row.ReputationTier),
			row.Condition,
			row.ShippingFree,
			row.ShippingFulfilledByPlatform,
			row.ShippingFast,
			row.InvoiceTypeA,
			row.InstallmentsNoInterest,
			row.ListingURL,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert offer %s: %w", row.OfferID, ErrDuplicateOffer)
			}
			return fmt.Errorf("insert offer %s: %w", row.OfferID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit raw insert: %w", err)
	}
	return nil
}

// SelectByDate loads every raw row for the given day, ordered by
// (catalog_id, offer_id) for stable iteration.
func (s *RawStore) SelectByDate(ctx context.Context, day time.Time) ([]offer.RawOffer, error) {
	query := fmt.Sprintf(`
SELECT
	extraction_date,
	catalog_id,
	offer_id,
	product_name,
	category_primary,
	category_secondary,
	price,
	seller_name,
	reputation_tier,
	condition,
	shipping_free,
	shipping_fulfilled_by_platform,
	shipping_fast,
	invoice_type_a,
	installments_no_interest,
	listing_url
FROM %s
WHERE extraction_date = $1
ORDER BY catalog_id, offer_id`, s.table)

	rows, err := s.pool.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("select raw offers: %w", err)
	}
	defer rows.Close()

	var out []offer.RawOffer
	for rows.Next() {
		var (
			row  offer.RawOffer
			tier string
		)
		err := rows.Scan(
			&row.ExtractionDate,
			&row.CatalogID,
			&row.OfferID,
			&row.ProductName,
			&row.CategoryPrimary,
			&row.CategorySecondary,
			&row.Price,
			&row.SellerName,
			&tier,
			&row.Condition,
			&row.ShippingFree,
			&row.ShippingFulfilledByPlatform,
			&row.ShippingFast,
			&row.InvoiceTypeA,
			&row.InstallmentsNoInterest,
			&row.ListingURL,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw offer row: %w", err)
		}
		row.ReputationTier = offer.ReputationTier(tier)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw offer rows: %w", err)
	}
	return out, nil
}
