package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/maltedev/bidgrid-scraper/internal/browser"
	"github.com/maltedev/bidgrid-scraper/internal/config"
	"github.com/maltedev/bidgrid-scraper/internal/database"
	"github.com/maltedev/bidgrid-scraper/internal/grid"
	"github.com/maltedev/bidgrid-scraper/internal/orchestrator"
	"github.com/maltedev/bidgrid-scraper/internal/parser"
	"github.com/maltedev/bidgrid-scraper/internal/ratelimit"
	"github.com/maltedev/bidgrid-scraper/internal/shutdown"
	"github.com/maltedev/bidgrid-scraper/internal/store"
	"github.com/maltedev/bidgrid-scraper/pkg/logger"
)

func main() {
	var (
		categories = flag.String("categories", "", "Comma-separated category names (overrides GRID_CATEGORIES)")
		baseURL    = flag.String("base-url", "", "Bid grid entry URL (overrides GRID_BASE_URL)")
		output     = flag.String("output", "", "Record store path for the csv driver (overrides STORE_PATH)")
		headless   = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	overrides := cliOverrides{
		categories: *categories,
		baseURL:    *baseURL,
		output:     *output,
		headless:   *headless,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			overrides.headlessSet = true
		}
	})
	applyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logSink, closeLog, err := openLogSink(cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog()

	logr := logger.New(cfg.Logging.Level, cfg.Logging.Format, logSink)
	logr.Info("starting bid grid scraper", "base_url", cfg.Grid.BaseURL, "categories", cfg.Grid.Categories)

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		UserAgent:      browserUserAgent(cfg),
	})
	if err != nil {
		logr.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}

	coordinator := shutdown.NewCoordinator(logr, func() {
		if err := b.Close(); err != nil {
			logr.Error("failed to release browser", "error", err)
		}
	})
	defer coordinator.Release()

	ctx, cancel := coordinator.Notify(context.Background())
	defer cancel()

	records, err := openStore(ctx, cfg)
	if err != nil {
		logr.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer records.Close()

	page, err := b.NewPage()
	if err != nil {
		logr.Error("failed to open page", "error", err)
		os.Exit(1)
	}

	if err := b.NavigateWithRetry(page, cfg.Grid.BaseURL, cfg.Scraper.NavRetries); err != nil {
		logr.Error("failed to reach bid grid", "error", err)
		os.Exit(1)
	}

	selectors := grid.DefaultSelectors()
	nav := grid.NewPageNavigator(page, selectors, grid.NavigatorOptions{
		Timeout: cfg.Scraper.WaitTimeout,
		Settle:  cfg.Scraper.SettleDelay,
	})
	acquirer := grid.NewDialogAcquirer(page, selectors, parser.NewDetailParser(), grid.AcquirerOptions{
		Timeout: cfg.Scraper.WaitTimeout,
		Settle:  cfg.Scraper.DialogSettle,
	})
	limiter := ratelimit.NewAdaptiveLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	o := orchestrator.New(nav, acquirer, records, cfg.Grid.Categories, orchestrator.Options{
		Limiter: limiter,
		Logger:  logr,
	})

	stats, err := o.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logr.Warn("run interrupted before completion",
				"appended", stats.Appended, "skipped", stats.Skipped)
		} else {
			logr.Error("run aborted", "error", err)
		}
		return
	}

	logr.Info("scraping complete",
		"appended", stats.Appended,
		"skipped", stats.Skipped,
		"malformed", stats.Malformed,
		"row_faults", stats.RowFaults,
		"store_failures", stats.StoreFailures)
}

// cliOverrides carries flag values over the env-derived config. headlessSet
// distinguishes an explicit -headless from the flag default, so the flag
// wins over BROWSER_HEADLESS in either direction only when given.
type cliOverrides struct {
	categories  string
	baseURL     string
	output      string
	headless    bool
	headlessSet bool
}

func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.categories != "" {
		cfg.Grid.Categories = splitCategories(o.categories)
	}
	if o.baseURL != "" {
		cfg.Grid.BaseURL = o.baseURL
	}
	if o.output != "" {
		cfg.Store.Path = o.output
	}
	if o.headlessSet {
		cfg.Browser.Headless = o.headless
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.RecordStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.New(ctx, database.Config{DSN: cfg.Database.DSN()})
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return database.NewRecordStore(db, cfg.Redis.Stream), nil
	default:
		return store.NewCSVStore(cfg.Store.Path), nil
	}
}

func openLogSink(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return io.MultiWriter(os.Stdout, file), func() { file.Close() }, nil
}

func browserUserAgent(cfg *config.Config) string {
	if cfg.Browser.UserAgent != "" {
		return cfg.Browser.UserAgent
	}
	return browser.DefaultOptions().UserAgent
}

func splitCategories(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
