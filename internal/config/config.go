// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Browser BrowserConfig `mapstructure:"browser"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Output  OutputConfig  `mapstructure:"output"`
	DB      DBConfig      `mapstructure:"db"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SiteConfig identifies the crawl target.
type SiteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	CategoryURL string `mapstructure:"category_url"`
}

// CrawlerConfig governs traversal, throttling and retry behavior.
type CrawlerConfig struct {
	MaxPages          int     `mapstructure:"max_pages"`
	MaxRetries        int     `mapstructure:"max_retries"`
	DelayMinSeconds   int     `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds   int     `mapstructure:"delay_max_seconds"`
	BackoffBaseSecs   int     `mapstructure:"backoff_base_seconds"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	FlushEvery        int     `mapstructure:"flush_every"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	Headless      bool `mapstructure:"headless"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// ProxyConfig carries the opaque proxy connection strings to rotate.
type ProxyConfig struct {
	URLs []string `mapstructure:"urls"`
}

// OutputConfig selects where flushed record batches go.
type OutputConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

// DBConfig controls the Postgres sink when output.driver is "postgres".
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig enables the Prometheus listener when Port > 0.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STORECRAWL")
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
	v.SetDefault("site.base_url", "https://www.amazon.com")
	v.SetDefault("crawler.max_pages", 20)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.delay_min_seconds", 5)
	v.SetDefault("crawler.delay_max_seconds", 10)
	v.SetDefault("crawler.backoff_base_seconds", 2)
	v.SetDefault("crawler.backoff_multiplier", 2.0)
	v.SetDefault("crawler.flush_every", 5)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 60)
	v.SetDefault("output.driver", "csv")
	v.SetDefault("output.dir", "data")
	v.SetDefault("db.table", "products")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Site.CategoryURL == "" {
		return fmt.Errorf("site.category_url is required")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.Crawler.MaxRetries <= 0 {
		return fmt.Errorf("crawler.max_retries must be > 0")
	}
	if c.Crawler.DelayMaxSeconds < c.Crawler.DelayMinSeconds {
		return fmt.Errorf("crawler.delay_max_seconds must be >= crawler.delay_min_seconds")
	}
	switch c.Output.Driver {
	case "csv":
		if c.Output.Dir == "" {
			return fmt.Errorf("output.dir is required for the csv driver")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("output.driver must be csv or postgres, got %q", c.Output.Driver)
	}
	return nil
}

// DelayRange converts the configured delay bounds into durations.
func (c Config) DelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.Crawler.DelayMinSeconds) * time.Second,
		time.Duration(c.Crawler.DelayMaxSeconds) * time.Second
}

// NavTimeout returns the per-navigation timeout.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// BackoffBase returns the configured base backoff delay.
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.Crawler.BackoffBaseSecs) * time.Second
}
