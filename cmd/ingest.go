package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newIngestCmd creates the 'ingest' subcommand for a single catalog URL.
func newIngestCmd() *cobra.Command {
	var rawURL string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a single catalog URL for today",
		Long: `Crawls one catalog product listing and stores today's raw competitor
offers. Does not touch the KPI snapshot; run 'kpi' afterwards or use
'run' for the full pass.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := appInstance.Ingestor().Process(cmd.Context(), rawURL)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", rawURL, err)
			}
			appInstance.Logger().Info("ingest finished",
				zap.String("catalog_id", summary.CatalogID),
				zap.Int("stored", summary.Stored),
				zap.Int("skipped_fragments", summary.Skipped),
				zap.Bool("already_ingested", summary.AlreadyIngested),
				zap.Bool("timed_out", summary.TimedOut))
			return nil
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "catalog product URL to ingest")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
