package kpi

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/metrics"
	"github.com/nmoreyra/catalogpulse/internal/offer"
)

// Aggregator turns one day's raw offer rows into one KPI row per product.
type Aggregator struct {
	source RawSource
	sink   Sink
	logger *zap.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(source RawSource, sink Sink, logger *zap.Logger) *Aggregator {
	return &Aggregator{source: source, sink: sink, logger: logger}
}

// Aggregate loads the run date's raw rows, computes one KPI row per
// catalog, and upserts the batch. An empty day is not an error: nothing is
// written and 0 is returned. Re-running for the same date overwrites every
// derived column, so corrected raw data fully supersedes earlier output.
func (a *Aggregator) Aggregate(ctx context.Context, ourSellerName string, runDate time.Time) (int, error) {
	rows, err := a.source.SelectByDate(ctx, runDate)
	if err != nil {
		return 0, fmt.Errorf("load raw offers for %s: %w", runDate.Format(time.DateOnly), err)
	}
	if len(rows) == 0 {
		a.logger.Info("no raw offers for date, skipping KPI pass",
			zap.String("date", runDate.Format(time.DateOnly)))
		return 0, nil
	}

	groups := make(map[string][]offer.RawOffer)
	for _, row := range rows {
		groups[row.CatalogID] = append(groups[row.CatalogID], row)
	}

	catalogIDs := make([]string, 0, len(groups))
	for id := range groups {
		catalogIDs = append(catalogIDs, id)
	}
	sort.Strings(catalogIDs)

	batch := make([]DailyProductKPI, 0, len(groups))
	for _, id := range catalogIDs {
		batch = append(batch, compute(id, groups[id], ourSellerName, runDate))
	}

	if err := a.sink.UpsertBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("upsert KPI batch for %s: %w", runDate.Format(time.DateOnly), err)
	}
	metrics.KPIRowsUpserted(len(batch))
	a.logger.Info("KPI snapshot written",
		zap.String("date", runDate.Format(time.DateOnly)),
		zap.Int("products", len(batch)))
	return len(batch), nil
}
