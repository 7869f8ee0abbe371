// Package app initializes and holds long-lived pipeline services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nmoreyra/catalogpulse/internal/browser"
	"github.com/nmoreyra/catalogpulse/internal/clock"
	"github.com/nmoreyra/catalogpulse/internal/clock/system"
	"github.com/nmoreyra/catalogpulse/internal/config"
	"github.com/nmoreyra/catalogpulse/internal/crawler"
	"github.com/nmoreyra/catalogpulse/internal/ingest"
	"github.com/nmoreyra/catalogpulse/internal/kpi"
	"github.com/nmoreyra/catalogpulse/internal/logging"
	"github.com/nmoreyra/catalogpulse/internal/metrics"
	"github.com/nmoreyra/catalogpulse/internal/storage/local"
	"github.com/nmoreyra/catalogpulse/internal/storage/postgres"
)

// App holds the shared services built once at startup and threaded into
// each command: logger, database pool, stores, ingestor, and aggregator.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	clock  clock.Clock

	pool     postgres.Pool
	rawStore *postgres.RawStore
	kpiStore *postgres.KPIStore

	ingestor   *ingest.Ingestor
	aggregator *kpi.Aggregator

	metricsSrv *http.Server
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Clock returns the pipeline clock.
func (a *App) Clock() clock.Clock { return a.clock }

// Pool exposes the database pool for maintenance commands.
func (a *App) Pool() postgres.Pool { return a.pool }

// Ingestor returns the catalog ingestion flow.
func (a *App) Ingestor() *ingest.Ingestor { return a.ingestor }

// Aggregator returns the KPI aggregation flow.
func (a *App) Aggregator() *kpi.Aggregator { return a.aggregator }

// New wires every service from the configuration. It fails fast: any
// service that cannot be initialized aborts startup.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	runID := uuid.NewString()
	logger, err := logging.New(cfg.Logging.Development, runID)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("initializing pipeline services")

	metrics.Init()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.Clock{},
		pool:   pool,
	}

	a.rawStore, err = postgres.NewRawStore(pool, cfg.Company.RawTable)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize raw store: %w", err)
	}
	a.kpiStore, err = postgres.NewKPIStore(pool, cfg.Company.KPITable)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize kpi store: %w", err)
	}

	var snapshots crawler.SnapshotSink
	if cfg.Snapshots.Enabled {
		store, err := local.New(local.Config{BaseDir: cfg.Snapshots.BaseDir}, a.clock)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize snapshot store: %w", err)
		}
		snapshots = store
		logger.Info("page state snapshots enabled", zap.String("dir", cfg.Snapshots.BaseDir))
	}

	browserCfg := browser.Config{
		UserAgents:   cfg.Crawler.UserAgents,
		CookiesPath:  cfg.Crawler.CookiesPath,
		NavTimeout:   cfg.Crawler.NavTimeout,
		StateTimeout: cfg.Crawler.StateTimeout,
	}
	factory := func() (crawler.PageSource, error) {
		return browser.NewSession(browserCfg, logger)
	}
	pacer := crawler.NewJitterPacer(crawler.PacingConfig{
		DelayMin:      cfg.Crawler.PageDelayMin,
		DelayMax:      cfg.Crawler.PageDelayMax,
		CooldownEvery: cfg.Crawler.CooldownEveryPages,
		CooldownMin:   cfg.Crawler.CooldownMin,
		CooldownMax:   cfg.Crawler.CooldownMax,
		NavPerSecond:  cfg.Crawler.NavPerSecond,
	})
	crawl := crawler.New(factory, pacer, snapshots, logger)

	a.ingestor = ingest.New(crawl, a.rawStore, a.clock, logger)
	a.aggregator = kpi.NewAggregator(a.rawStore, a.kpiStore, logger)

	if cfg.Metrics.Enabled {
		a.metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listener starting", zap.Int("port", cfg.Metrics.Port))
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	logger.Info("pipeline services initialized")
	return a, nil
}

// Close shuts down every service the container owns. Safe to call on a
// partially constructed App.
func (a *App) Close() {
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics listener shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.logger != nil {
		a.logger.Info("pipeline services shut down")
		// Best effort: stderr sync commonly fails on some platforms.
		_ = a.logger.Sync()
	}
}
