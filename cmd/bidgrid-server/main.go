package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/bidgrid-scraper/internal/api"
	"github.com/maltedev/bidgrid-scraper/internal/browser"
	"github.com/maltedev/bidgrid-scraper/internal/config"
	"github.com/maltedev/bidgrid-scraper/internal/database"
	"github.com/maltedev/bidgrid-scraper/internal/grid"
	"github.com/maltedev/bidgrid-scraper/internal/jobs"
	"github.com/maltedev/bidgrid-scraper/internal/orchestrator"
	"github.com/maltedev/bidgrid-scraper/internal/parser"
	"github.com/maltedev/bidgrid-scraper/internal/queue"
	"github.com/maltedev/bidgrid-scraper/internal/ratelimit"
	"github.com/maltedev/bidgrid-scraper/internal/shutdown"
	"github.com/maltedev/bidgrid-scraper/internal/store"
	"github.com/maltedev/bidgrid-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logSink, closeLog, err := openLogSink(cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog()

	logr := logger.New(cfg.Logging.Level, cfg.Logging.Format, logSink)
	logr.Info("starting bid grid server", "port", cfg.Server.Port)

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		UserAgent:      browser.DefaultOptions().UserAgent,
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

	var (
		records store.RecordStore
		outbox  *database.OutboxRepository
	)
	if cfg.Store.Driver == "postgres" {
		db, err := database.New(ctx, database.Config{DSN: cfg.Database.DSN()})
		if err != nil {
			logr.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			logr.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		records = database.NewRecordStore(db, cfg.Redis.Stream)
		outbox = database.NewOutboxRepository(db)

		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logr.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}

		relay := database.NewRelay(outbox, redisClient, database.RelayConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		})
		go func() {
			if err := relay.Start(ctx); err != nil && err != context.Canceled {
				logr.Error("relay stopped with error", "error", err)
			}
		}()
	} else {
		records = store.NewCSVStore(cfg.Store.Path)
	}
	defer records.Close()

	runner := &extractionRunner{b: b, cfg: cfg, records: records}

	runQueue := queue.NewInMemoryQueue()
	defer runQueue.Close()

	manager := jobs.NewManager(runQueue, runner, logr)
	go manager.StartWorker(ctx)

	handlers := api.NewHandlers(manager, cfg.Grid.Categories, logr)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		health := map[string]interface{}{
			"status":      "ok",
			"queue_depth": manager.QueueDepth(),
		}
		if outbox != nil {
			pending, _ := outbox.CountByStatus(req.Context(), "pending")
			dead, _ := outbox.CountByStatus(req.Context(), "dead")
			health["outbox"] = map[string]int64{"pending": pending, "dead": dead}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", handlers.CreateRun)
		r.Get("/runs", handlers.ListRuns)
		r.Get("/runs/{runID}", handlers.GetRun)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("server shutdown failed", "error", err)
		}
	}()

	logr.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Error("server failed", "error", err)
		os.Exit(1)
	}

	logr.Info("server stopped")
}

// extractionRunner builds a fresh page, navigator, and orchestrator per run
// against the shared browser.
type extractionRunner struct {
	b       *browser.Browser
	cfg     *config.Config
	records store.RecordStore
}

func (r *extractionRunner) Run(ctx context.Context, categories []string) (*orchestrator.RunStats, error) {
	page, err := r.b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	if err := r.b.NavigateWithRetry(page, r.cfg.Grid.BaseURL, r.cfg.Scraper.NavRetries); err != nil {
		return nil, fmt.Errorf("failed to reach bid grid: %w", err)
	}

	selectors := grid.DefaultSelectors()
	nav := grid.NewPageNavigator(page, selectors, grid.NavigatorOptions{
		Timeout: r.cfg.Scraper.WaitTimeout,
		Settle:  r.cfg.Scraper.SettleDelay,
	})
	acquirer := grid.NewDialogAcquirer(page, selectors, parser.NewDetailParser(), grid.AcquirerOptions{
		Timeout: r.cfg.Scraper.WaitTimeout,
		Settle:  r.cfg.Scraper.DialogSettle,
	})
	limiter := ratelimit.NewAdaptiveLimiter(r.cfg.Scraper.RateLimitMin, r.cfg.Scraper.RateLimitMax)

	o := orchestrator.New(nav, acquirer, r.records, categories, orchestrator.Options{Limiter: limiter})
	return o.Run(ctx)
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
