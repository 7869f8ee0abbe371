package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/clock"
	"github.com/nmoreyra/catalogpulse/internal/config"
	"github.com/nmoreyra/catalogpulse/internal/ingest"
)

// ingestFlow and kpiFlow are the narrow surfaces the pipeline needs,
// extracted so the orchestration is testable without a browser or a
// database.
type ingestFlow interface {
	Process(ctx context.Context, rawURL string) (ingest.Summary, error)
}

type kpiFlow interface {
	Aggregate(ctx context.Context, ourSellerName string, runDate time.Time) (int, error)
}

// newRunCmd creates the 'run' subcommand: the full daily pass.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Ingest every configured catalog, then recompute today's KPI snapshot",
		Long: `Crawls each configured catalog URL (in randomized order), stores the
raw competitor offers for today, and finishes with a KPI aggregation
pass over everything stored for the day. Catalogs that were already
ingested today are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runPipeline(
				cmd.Context(),
				appInstance.Logger(),
				appInstance.Clock(),
				appInstance.Config().Company,
				appInstance.Ingestor(),
				appInstance.Aggregator(),
			)
		},
	}
}

// runPipeline executes the daily pass. Per-URL failures are isolated: one
// broken catalog never blocks the rest, and the KPI pass always runs over
// whatever was stored. The pass fails only when every ingest failed or
// the aggregation itself errors.
func runPipeline(
	ctx context.Context,
	logger *zap.Logger,
	clk clock.Clock,
	company config.CompanyConfig,
	ing ingestFlow,
	agg kpiFlow,
) error {
	urls := shuffled(company.CatalogURLs)
	logger.Info("daily pass starting", zap.Int("catalogs", len(urls)))

	failures := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			logger.Warn("daily pass canceled")
			break
		}
		summary, err := ing.Process(ctx, u)
		if err != nil {
			failures++
			logger.Error("catalog ingest failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if summary.AlreadyIngested {
			continue
		}
		logger.Info("catalog done",
			zap.String("catalog_id", summary.CatalogID),
			zap.Int("stored", summary.Stored),
			zap.Bool("timed_out", summary.TimedOut))
	}

	if failures == len(urls) && len(urls) > 0 {
		return fmt.Errorf("all %d catalog ingests failed", len(urls))
	}

	rows, err := agg.Aggregate(ctx, company.SellerName, clk.Today())
	if err != nil {
		return fmt.Errorf("kpi aggregation: %w", err)
	}
	logger.Info("daily pass complete",
		zap.Int("ingest_failures", failures),
		zap.Int("kpi_rows", rows))

	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	return nil
}

// shuffled returns a randomized copy so the site never sees the catalogs
// in the same order two days in a row.
func shuffled(urls []string) []string {
	out := make([]string, len(urls))
	copy(out, urls)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
