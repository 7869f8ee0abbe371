// Package kpi derives the daily per-product KPI snapshot from the day's
// raw offer rows.
package kpi

import (
	"context"
	"time"

	"github.com/nmoreyra/catalogpulse/internal/offer"
)

// DailyProductKPI is the single aggregated row per (Date, CatalogID).
// Every field is derived deterministically from the raw rows sharing that
// key; re-running the aggregation over the same inputs yields identical
// values.
type DailyProductKPI struct {
	Date              time.Time
	CatalogID         string
	ProductName       string
	CategoryPrimary   string
	CategorySecondary string
	CompetitorCount   int
	MinPrice          float64
	AvgPrice          float64
	MaxPrice          float64
	// OurPrice and OurRank are nil when the tracked seller has no offer
	// in the group that day.
	OurPrice               *float64
	OurRank                *int
	PctFastShipping        float64
	PctPlatformFulfilled   float64
	PctFreeShipping        float64
	PctInvoiceA            float64
	MarketLeaderOfferID    string
	MarketLeaderSellerName string
	// PriceGapVsLeader is our price minus the market minimum; nil when we
	// have no offer.
	PriceGapVsLeader   *float64
	AvgReputationScore float64
}

// RawSource reads one day's canonical offer rows.
type RawSource interface {
	SelectByDate(ctx context.Context, day time.Time) ([]offer.RawOffer, error)
}

// Sink upserts KPI rows keyed by (Date, CatalogID). The write is atomic
// per batch: either the full set commits or none of it does.
type Sink interface {
	UpsertBatch(ctx context.Context, rows []DailyProductKPI) error
}
