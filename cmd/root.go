// Package cmd defines and implements the CLI commands for the
// catalogpulse executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/app"
	"github.com/nmoreyra/catalogpulse/internal/clock"
	"github.com/nmoreyra/catalogpulse/internal/config"
	"github.com/nmoreyra/catalogpulse/internal/ingest"
	"github.com/nmoreyra/catalogpulse/internal/kpi"
	"github.com/nmoreyra/catalogpulse/internal/storage/postgres"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the service surface the commands consume. It is an interface so
// tests can inject a stub container.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Clock() clock.Clock
	Pool() postgres.Pool
	Ingestor() *ingest.Ingestor
	Aggregator() *kpi.Aggregator
}

// newApp is the application factory, replaceable in tests.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogpulse",
		Short: "Daily competitor price monitoring for marketplace catalog listings",
		Long: `catalogpulse crawls the seller listings of configured marketplace
catalog products once per day, stores the raw competitor offers, and
derives a per-product KPI snapshot (price position, rank, shipping and
reputation aggregates) into Postgres.`,

		// Runs after flag parsing and before the subcommand's RunE: the
		// right place to build and inject the service container.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize pipeline services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (env vars override)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newKPICmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("pipeline services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT/SIGTERM cancel the command
// context so an in-flight crawl stops at the next page boundary.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "catalogpulse: %v\n", err)
		os.Exit(1)
	}
}
