// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper. It is
// constructed once at startup and passed by reference into each component;
// no core logic reads configuration ambiently.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	DB        DBConfig        `mapstructure:"db"`
	Company   CompanyConfig   `mapstructure:"company"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// CompanyConfig describes the tracked company: which catalog listings to
// monitor, which tables hold its data, and how its own offers are
// identified among competitors.
type CompanyConfig struct {
	Name        string   `mapstructure:"name"`
	SellerName  string   `mapstructure:"seller_name"`
	CatalogURLs []string `mapstructure:"catalog_urls"`
	RawTable    string   `mapstructure:"raw_table"`
	KPITable    string   `mapstructure:"kpi_table"`
}

// CrawlerConfig governs the browser session and pagination pacing.
type CrawlerConfig struct {
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	StateTimeout       time.Duration `mapstructure:"state_timeout"`
	CookiesPath        string        `mapstructure:"cookies_path"`
	UserAgents         []string      `mapstructure:"user_agents"`
	PageDelayMin       time.Duration `mapstructure:"page_delay_min"`
	PageDelayMax       time.Duration `mapstructure:"page_delay_max"`
	CooldownEveryPages int           `mapstructure:"cooldown_every_pages"`
	CooldownMin        time.Duration `mapstructure:"cooldown_min"`
	CooldownMax        time.Duration `mapstructure:"cooldown_max"`
	NavPerSecond       float64       `mapstructure:"nav_per_second"`
}

// MetricsConfig controls the internal metrics listener.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SnapshotsConfig controls archiving of per-page embedded state JSON.
type SnapshotsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseDir string `mapstructure:"base_dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOGPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("company.raw_table", "raw_offers")
	v.SetDefault("company.kpi_table", "daily_product_kpis")
	v.SetDefault("crawler.nav_timeout", 60*time.Second)
	v.SetDefault("crawler.state_timeout", 15*time.Second)
	v.SetDefault("crawler.cookies_path", "cookies.json")
	v.SetDefault("crawler.page_delay_min", 2500*time.Millisecond)
	v.SetDefault("crawler.page_delay_max", 5500*time.Millisecond)
	v.SetDefault("crawler.cooldown_every_pages", 5)
	v.SetDefault("crawler.cooldown_min", 8*time.Second)
	v.SetDefault("crawler.cooldown_max", 15*time.Second)
	v.SetDefault("crawler.nav_per_second", 0.5)
	v.SetDefault("crawler.user_agents", defaultUserAgents)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9190)
	v.SetDefault("snapshots.enabled", false)
	v.SetDefault("snapshots.base_dir", "data/snapshots")
}

// defaultUserAgents is the rotation pool for session fingerprints. Desktop
// Chrome only; the embedded state contract differs on mobile layouts.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Company.SellerName == "" {
		return fmt.Errorf("company.seller_name must be set")
	}
	if len(c.Company.CatalogURLs) == 0 {
		return fmt.Errorf("company.catalog_urls must include at least one URL")
	}
	if c.Company.RawTable == "" {
		return fmt.Errorf("company.raw_table must be set")
	}
	if c.Company.KPITable == "" {
		return fmt.Errorf("company.kpi_table must be set")
	}
	if c.Crawler.NavTimeout <= 0 {
		return fmt.Errorf("crawler.nav_timeout must be > 0")
	}
	if c.Crawler.StateTimeout <= 0 {
		return fmt.Errorf("crawler.state_timeout must be > 0")
	}
	if len(c.Crawler.UserAgents) == 0 {
		return fmt.Errorf("crawler.user_agents must include at least one entry")
	}
	if c.Crawler.PageDelayMin < 0 || c.Crawler.PageDelayMax < c.Crawler.PageDelayMin {
		return fmt.Errorf("crawler.page_delay_min/max must form a non-negative range")
	}
	if c.Crawler.CooldownEveryPages < 0 {
		return fmt.Errorf("crawler.cooldown_every_pages must be >= 0")
	}
	if c.Crawler.CooldownMin < 0 || c.Crawler.CooldownMax < c.Crawler.CooldownMin {
		return fmt.Errorf("crawler.cooldown_min/max must form a non-negative range")
	}
	if c.Crawler.NavPerSecond < 0 {
		return fmt.Errorf("crawler.nav_per_second must be >= 0")
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	if c.Snapshots.Enabled && c.Snapshots.BaseDir == "" {
		return fmt.Errorf("snapshots.base_dir must be set when snapshots are enabled")
	}
	return nil
}
