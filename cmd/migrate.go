package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/storage/postgres"
)

// newMigrateCmd creates the hidden 'migrate' subcommand that bootstraps
// the database schema.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "migrate",
		Short:  "Create the raw and KPI tables if they do not exist",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			company := appInstance.Config().Company
			if err := postgres.Bootstrap(
				cmd.Context(), appInstance.Pool(), company.RawTable, company.KPITable,
			); err != nil {
				return err
			}
			appInstance.Logger().Info("schema ready",
				zap.String("raw_table", company.RawTable),
				zap.String("kpi_table", company.KPITable))
			return nil
		},
	}
}
