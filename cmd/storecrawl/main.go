// Package main wires together the crawl binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/storecrawl/storecrawl/internal/browser"
	"github.com/storecrawl/storecrawl/internal/clock/system"
	"github.com/storecrawl/storecrawl/internal/config"
	"github.com/storecrawl/storecrawl/internal/crawler"
	"github.com/storecrawl/storecrawl/internal/extract"
	"github.com/storecrawl/storecrawl/internal/fetch"
	"github.com/storecrawl/storecrawl/internal/identity"
	"github.com/storecrawl/storecrawl/internal/logging"
	"github.com/storecrawl/storecrawl/internal/runstate"
	csvsink "github.com/storecrawl/storecrawl/internal/sink/csv"
	pgsink "github.com/storecrawl/storecrawl/internal/sink/postgres"
	"github.com/storecrawl/storecrawl/internal/traverse"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("crawl failed", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	clk := system.New()

	sink, cleanup, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	coord := runstate.New(sink, cfg.Crawler.FlushEvery, clk, logger)

	// SIGINT and SIGTERM flip the shutdown flag. In-flight work finishes,
	// pending records are flushed, and the run unwinds cleanly.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("signal received, requesting shutdown", zap.String("signal", sig.String()))
		coord.RequestShutdown()
	}()
	defer signal.Stop(signals)

	if cfg.Metrics.Port > 0 {
		go serveMetrics(cfg.Metrics.Port, logger)
	}

	delayMin, delayMax := cfg.DelayRange()
	pauser := crawler.TimerPauser{}

	ids := identity.NewManager(cfg.Proxy.URLs, logger)
	launcher := browser.NewLauncher(browser.Config{Headless: cfg.Browser.Headless}, logger)
	fetcher := fetch.New(fetch.Config{
		MaxRetries:        cfg.Crawler.MaxRetries,
		BackoffBase:       cfg.BackoffBase(),
		BackoffMultiplier: cfg.Crawler.BackoffMultiplier,
		DelayMin:          delayMin,
		DelayMax:          delayMax,
		NavTimeout:        cfg.NavTimeout(),
		RequestsPerMinute: cfg.Crawler.RequestsPerMinute,
	}, coord, fetch.NewRandomBrowser(pauser), pauser, logger)
	extractor := extract.New(clk, logger)

	ctrl := traverse.New(
		traverse.Config{BaseURL: cfg.Site.BaseURL},
		launcher,
		ids,
		fetcher,
		extractor,
		coord,
		pauser,
		logger,
	)

	start := time.Now()
	records, err := ctrl.CrawlCategory(ctx, cfg.Site.CategoryURL, cfg.Crawler.MaxPages)
	coord.FinalFlush(ctx)
	if err != nil {
		return fmt.Errorf("crawl category: %w", err)
	}

	logger.Info("crawl complete",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func buildSink(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.RecordSink, func(), error) {
	switch cfg.Output.Driver {
	case "postgres":
		s, err := pgsink.New(ctx, pgsink.Config{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres sink: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := csvsink.New(cfg.Output.Dir, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("csv sink: %w", err)
		}
		return s, func() {}, nil
	}
}

func serveMetrics(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listener starting", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics listener stopped", zap.Error(err))
	}
}
