// Package ingest orchestrates one catalog's daily extraction: guard,
// crawl, enrich, store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/clock"
	"github.com/nmoreyra/catalogpulse/internal/crawler"
	"github.com/nmoreyra/catalogpulse/internal/metrics"
	"github.com/nmoreyra/catalogpulse/internal/offer"
	"github.com/nmoreyra/catalogpulse/internal/storage/postgres"
)

// ErrUnrecognizedURL reports a configured URL that carries no catalog id;
// without one the per-day guard cannot key the run, so no crawl happens.
var ErrUnrecognizedURL = errors.New("url carries no catalog id")

// CatalogCrawler extracts offers for one catalog URL.
type CatalogCrawler interface {
	Crawl(ctx context.Context, rawURL string) crawler.Result
}

// RawStore is the persistence surface the ingestor needs.
type RawStore interface {
	Exists(ctx context.Context, catalogID string, day time.Time) (bool, error)
	InsertBatch(ctx context.Context, rows []offer.RawOffer) error
}

// Summary describes what one Process call did.
type Summary struct {
	CatalogID string
	SessionID string
	Pages     int
	Parsed    int
	Skipped   int
	Stored    int
	TimedOut  bool
	// AlreadyIngested is set when rows for (catalog, today) existed before
	// the crawl, so the whole extraction was skipped.
	AlreadyIngested bool
}

// Ingestor runs the extract-and-store flow for single catalog URLs.
type Ingestor struct {
	crawler CatalogCrawler
	store   RawStore
	clock   clock.Clock
	logger  *zap.Logger
}

// New constructs an Ingestor.
func New(c CatalogCrawler, store RawStore, clk clock.Clock, logger *zap.Logger) *Ingestor {
	return &Ingestor{crawler: c, store: store, clock: clk, logger: logger}
}

// Process ingests one catalog URL for today. Raw rows are write-once per
// (catalog, date): when any row already exists the crawl is skipped
// entirely, and a concurrent writer who wins the insert race is treated
// the same way.
func (i *Ingestor) Process(ctx context.Context, rawURL string) (Summary, error) {
	catalogID, ok := crawler.CatalogID(rawURL)
	if !ok {
		i.logger.Warn("skipping url without a catalog id", zap.String("url", rawURL))
		metrics.IngestSkipped("unrecognized_url")
		return Summary{}, fmt.Errorf("%q: %w", rawURL, ErrUnrecognizedURL)
	}
	logger := i.logger.With(zap.String("catalog_id", catalogID))

	day := i.clock.Today()
	exists, err := i.store.Exists(ctx, catalogID, day)
	if err != nil {
		return Summary{CatalogID: catalogID}, fmt.Errorf("check existing rows for %s: %w", catalogID, err)
	}
	if exists {
		logger.Info("already ingested today, skipping crawl",
			zap.String("date", day.Format(time.DateOnly)))
		metrics.IngestSkipped("already_ingested")
		return Summary{CatalogID: catalogID, AlreadyIngested: true}, nil
	}

	res := i.crawler.Crawl(ctx, rawURL)
	summary := Summary{
		CatalogID: catalogID,
		SessionID: res.SessionID,
		Pages:     res.Pages,
		Parsed:    res.Parsed,
		Skipped:   res.Skipped,
		TimedOut:  res.TimedOut,
	}
	if len(res.Offers) == 0 {
		logger.Warn("crawl produced no offers, nothing stored")
		return summary, nil
	}

	rows := enrich(res, catalogID, day)
	if err := i.store.InsertBatch(ctx, rows); err != nil {
		if errors.Is(err, postgres.ErrDuplicateOffer) {
			// Another writer stored this catalog/date between the guard
			// check and our insert. The data exists, so this run is a skip,
			// not a failure.
			logger.Warn("lost insert race to a concurrent ingest, discarding batch")
			metrics.IngestSkipped("duplicate")
			summary.AlreadyIngested = true
			return summary, nil
		}
		return summary, fmt.Errorf("store offers for %s: %w", catalogID, err)
	}
	summary.Stored = len(rows)
	metrics.RawRowsInserted(len(rows))

	logger.Info("catalog ingested",
		zap.String("session_id", res.SessionID),
		zap.Int("pages", res.Pages),
		zap.Int("stored", len(rows)),
		zap.Int("skipped_fragments", res.Skipped),
		zap.Bool("timed_out", res.TimedOut))
	return summary, nil
}

// enrich stamps the crawl-level identity and product metadata onto each
// parsed offer row.
func enrich(res crawler.Result, catalogID string, day time.Time) []offer.RawOffer {
	rows := make([]offer.RawOffer, len(res.Offers))
	for idx, row := range res.Offers {
		row.CatalogID = catalogID
		row.ExtractionDate = day
		if row.ProductName == "" {
			row.ProductName = res.Meta.Name
		}
		if row.CategoryPrimary == "" {
			row.CategoryPrimary = res.Meta.CategoryPrimary
		}
		if row.CategorySecondary == "" {
			row.CategorySecondary = res.Meta.CategorySecondary
		}
		rows[idx] = row
	}
	return rows
}
