// Package crawler walks one catalog's paginated seller listing through a
// stealth browser session and extracts structured offer data.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/browser"
	"github.com/nmoreyra/catalogpulse/internal/metrics"
	"github.com/nmoreyra/catalogpulse/internal/offer"
)

// PageSource is the browser capability the crawler needs: navigate and
// return the page's embedded state JSON. Satisfied by *browser.Session.
type PageSource interface {
	FetchState(ctx context.Context, url string) ([]byte, error)
	Close()
}

// SessionFactory opens a fresh isolated browser session. Each crawl owns
// exactly one session.
type SessionFactory func() (PageSource, error)

// SnapshotSink archives the raw embedded state JSON of each page.
type SnapshotSink interface {
	SavePageState(catalogID string, page int, data []byte) error
}

// ProductMeta is the catalog-level metadata extracted once per crawl.
// Fields stay empty when the product page could not be parsed; that is a
// warning, not a crawl failure.
type ProductMeta struct {
	Name              string
	CategoryPrimary   string
	CategorySecondary string
}

// Result is everything one crawl session produced. Partial results are
// kept: a failure mid-pagination returns the pages accumulated so far.
type Result struct {
	SessionID string
	Offers    []offer.RawOffer
	Meta      ProductMeta
	Pages     int
	Parsed    int
	Skipped   int
	// TimedOut records that pagination ended on a navigation timeout
	// rather than an empty page.
	TimedOut bool
}

// Crawler drives one catalog listing crawl at a time. Single-flow per
// product: pagination is sequential because throttling, not throughput, is
// the goal.
type Crawler struct {
	newSession SessionFactory
	pacer      Pacer
	snapshots  SnapshotSink
	logger     *zap.Logger
}

// New constructs a Crawler. snapshots may be nil to disable archiving.
func New(newSession SessionFactory, pacer Pacer, snapshots SnapshotSink, logger *zap.Logger) *Crawler {
	if pacer == nil {
		pacer = ZeroDelayPacer{}
	}
	return &Crawler{
		newSession: newSession,
		pacer:      pacer,
		snapshots:  snapshots,
		logger:     logger,
	}
}

// Crawl extracts all seller offers for one catalog URL. It never returns
// an error: every failure is logged and the accumulated partial result is
// returned. Pagination terminates on the first empty page or on a
// navigation failure; a timeout is treated as end-of-results and is not
// retried (inherited policy, flagged for product-owner review).
func (c *Crawler) Crawl(ctx context.Context, rawURL string) Result {
	result := Result{SessionID: uuid.NewString()}
	logger := c.logger.With(zap.String("session_id", result.SessionID))

	baseURL, ok := NormalizeCatalogURL(rawURL)
	if !ok {
		logger.Warn("url does not match the catalog product-page shape, using as-is",
			zap.String("url", rawURL))
	}
	catalogID, _ := CatalogID(baseURL)

	session, err := c.newSession()
	if err != nil {
		logger.Error("browser session launch failed", zap.Error(err))
		return result
	}
	defer session.Close()

	start := time.Now()
	defer func() { metrics.ObserveCrawlDuration(time.Since(start)) }()

	if meta, metaErr := c.fetchMetadata(ctx, session, baseURL); metaErr != nil {
		logger.Warn("product metadata extraction failed, continuing without it",
			zap.String("url", baseURL), zap.Error(metaErr))
	} else {
		result.Meta = meta
	}

	for page := 1; ; page++ {
		if err := c.pacer.WaitNavigation(ctx); err != nil {
			logger.Warn("crawl canceled while pacing", zap.Int("page", page), zap.Error(err))
			return result
		}

		pageURL := fmt.Sprintf("%s/s?page=%d", baseURL, page)
		raw, err := session.FetchState(ctx, pageURL)
		if err != nil {
			if errors.Is(err, browser.ErrNavigationTimeout) {
				result.TimedOut = true
				metrics.PageFetched("timeout")
				logger.Warn("page navigation timed out, ending pagination",
					zap.Int("page", page))
				return result
			}
			metrics.PageFetched("error")
			logger.Error("page fetch failed, ending pagination with partial results",
				zap.Int("page", page), zap.Error(err))
			return result
		}

		state, err := offer.DecodeState(raw)
		if err != nil {
			metrics.PageFetched("bad_state")
			logger.Error("embedded state decode failed, ending pagination",
				zap.Int("page", page), zap.Error(err))
			return result
		}
		metrics.PageFetched("ok")
		c.archive(logger, catalogID, page, raw)

		initial := state.PageState.InitialState
		items := initial.Components.Results.Items
		if len(items) == 0 {
			logger.Info("empty page reached, pagination complete",
				zap.Int("pages", page-1), zap.Int("offers", len(result.Offers)))
			return result
		}

		fulfillment := initial.FulfillmentByOffer()
		for _, item := range items {
			parsed := offer.Parse(item, fulfillment)
			metrics.OfferParsed(string(parsed.Status))
			switch parsed.Status {
			case offer.StatusParsed:
				result.Parsed++
				if parsed.TierUnmapped {
					logger.Debug("unmapped reputation tier defaulted to unrated",
						zap.String("offer_id", parsed.Offer.OfferID))
				}
				result.Offers = append(result.Offers, parsed.Offer)
			case offer.StatusSkipped:
				result.Skipped++
				logger.Warn("offer fragment skipped", zap.String("reason", parsed.Reason))
			}
		}
		result.Pages = page

		c.pacer.PageRest(ctx, page)
		if ctx.Err() != nil {
			logger.Warn("crawl canceled", zap.Int("page", page))
			return result
		}
	}
}

// fetchMetadata loads the canonical product page once and extracts the
// display name and category breadcrumb.
func (c *Crawler) fetchMetadata(ctx context.Context, session PageSource, baseURL string) (ProductMeta, error) {
	raw, err := session.FetchState(ctx, baseURL)
	if err != nil {
		return ProductMeta{}, err
	}
	state, err := offer.DecodeState(raw)
	if err != nil {
		return ProductMeta{}, err
	}

	initial := state.PageState.InitialState
	meta := ProductMeta{Name: initial.ProductName()}
	if path := initial.CategoryPath(); len(path) > 0 {
		meta.CategoryPrimary = path[0]
		meta.CategorySecondary = path[len(path)-1]
	}
	return meta, nil
}

func (c *Crawler) archive(logger *zap.Logger, catalogID string, page int, raw []byte) {
	if c.snapshots == nil || catalogID == "" {
		return
	}
	if err := c.snapshots.SavePageState(catalogID, page, raw); err != nil {
		logger.Warn("page state snapshot failed", zap.Int("page", page), zap.Error(err))
	}
}
