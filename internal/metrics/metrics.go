// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal   *prometheus.CounterVec
	offersParsedTotal   *prometheus.CounterVec
	crawlDurationSecs   prometheus.Histogram
	rawRowsInserted     prometheus.Counter
	ingestSkippedTotal  *prometheus.CounterVec
	kpiRowsUpserted     prometheus.Counter
	paceDelaySeconds    prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogpulse_pages_fetched_total",
				Help: "Catalog listing pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		offersParsedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogpulse_offers_parsed_total",
				Help: "Seller offer fragments parsed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		crawlDurationSecs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalogpulse_crawl_duration_seconds",
				Help:    "Wall-clock duration of one catalog crawl session.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		)
		rawRowsInserted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalogpulse_raw_rows_inserted_total",
				Help: "Raw offer rows persisted.",
			},
		)
		ingestSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogpulse_ingest_skipped_total",
				Help: "Ingestion invocations that did not crawl, labeled by reason.",
			},
			[]string{"reason"},
		)
		kpiRowsUpserted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalogpulse_kpi_rows_upserted_total",
				Help: "Daily KPI rows written by the aggregator.",
			},
		)
		paceDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalogpulse_pace_delay_seconds",
				Help:    "Delay introduced by the crawl pacing policy.",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		)
	})
}

// PageFetched records one fetched listing page.
func PageFetched(outcome string) {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.WithLabelValues(outcome).Inc()
	}
}

// OfferParsed records one parse outcome.
func OfferParsed(outcome string) {
	if offersParsedTotal != nil {
		offersParsedTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveCrawlDuration records the duration of one crawl session.
func ObserveCrawlDuration(d time.Duration) {
	if crawlDurationSecs != nil {
		crawlDurationSecs.Observe(d.Seconds())
	}
}

// RawRowsInserted adds persisted raw row count.
func RawRowsInserted(n int) {
	if rawRowsInserted != nil {
		rawRowsInserted.Add(float64(n))
	}
}

// IngestSkipped records an ingestion invocation that did not crawl.
func IngestSkipped(reason string) {
	if ingestSkippedTotal != nil {
		ingestSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// KPIRowsUpserted adds upserted KPI row count.
func KPIRowsUpserted(n int) {
	if kpiRowsUpserted != nil {
		kpiRowsUpserted.Add(float64(n))
	}
}

// ObservePaceDelay records a pacing pause.
func ObservePaceDelay(d time.Duration) {
	if paceDelaySeconds != nil && d > time.Millisecond {
		paceDelaySeconds.Observe(d.Seconds())
	}
}
