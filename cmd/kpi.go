package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newKPICmd creates the 'kpi' subcommand: recompute a day's snapshot.
func newKPICmd() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Recompute the KPI snapshot for a date (default today)",
		Long: `Recomputes the per-product KPI snapshot from the raw offers stored
for the given date. Safe to re-run: the snapshot row for each product
is fully overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			day := appInstance.Clock().Today()
			if dateStr != "" {
				day, err = time.ParseInLocation(time.DateOnly, dateStr, time.UTC)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
			}

			rows, err := appInstance.Aggregator().Aggregate(
				cmd.Context(), appInstance.Config().Company.SellerName, day)
			if err != nil {
				return err
			}
			appInstance.Logger().Info("kpi pass finished",
				zap.String("date", day.Format(time.DateOnly)),
				zap.Int("rows", rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", "", "snapshot date as YYYY-MM-DD (default today)")
	return cmd
}
