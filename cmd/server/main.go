package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/api"
	"github.com/maltedev/wb-listing-scraper/internal/browser"
	"github.com/maltedev/wb-listing-scraper/internal/config"
	"github.com/maltedev/wb-listing-scraper/internal/jobs"
	"github.com/maltedev/wb-listing-scraper/internal/metrics"
	"github.com/maltedev/wb-listing-scraper/internal/queue"
	"github.com/maltedev/wb-listing-scraper/internal/ratelimit"
	"github.com/maltedev/wb-listing-scraper/internal/scraper"
	"github.com/maltedev/wb-listing-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinks := jobs.OpenSinks(ctx, cfg, logger)
	defer sinks.Close()
	if sinks.History == nil {
		logger.Error("session history is required", "file", cfg.Output.HistoryFile)
		os.Exit(1)
	}

	m := metrics.New()
	service := scraper.NewService(scraper.Options{
		Site: scraper.Site{
			Host:      cfg.Site.Host,
			Origin:    cfg.Site.Origin,
			SearchURL: cfg.Site.SearchURL,
		},
		Rules: scraper.DefaultRules(),
		Loader: scraper.LoaderOptions{
			MaxScrolls:  cfg.Scraper.MaxScrolls,
			StablePolls: cfg.Scraper.StablePolls,
			ScrollDelay: cfg.Scraper.ScrollDelay,
		},
		Pause:   ratelimit.NewPause(cfg.Scraper.PauseMin, cfg.Scraper.PauseMax),
		Metrics: m,
	}, logger)

	limiter := ratelimit.NewSimpleRateLimiter(cfg.Scraper.SearchInterval, cfg.Scraper.SearchInterval+cfg.Scraper.SearchInterval/2)

	err = browser.Run(browserOptions(cfg), func(b *browser.Browser) error {
		runner := jobs.NewRunner(service, b, sinks.RunnerOptions(limiter), logger)

		q := queue.NewInMemoryQueue()
		defer q.Close()

		manager := jobs.NewManager(q, runner, logger)
		go manager.StartWorker(ctx)

		var archive api.SessionArchive
		if sinks.DB != nil {
			archive = sinks.DB
		}

		handlers := api.NewHandlers(runner, manager, sinks.History, archive, cfg.Site.DefaultQuery, logger)
		router := api.NewRouter(handlers, api.RouterOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Timeout:        cfg.Server.WriteTimeout,
			Registry:       m.Registry,
		})

		return serve(ctx, cancel, cfg, router, logger)
	})
	if err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func serve(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func browserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	opts.ReadyTimeout = cfg.Browser.ReadyTimeout
	opts.UserAgent = cfg.Browser.UserAgent
	opts.ViewportWidth = cfg.Browser.ViewportWidth
	opts.ViewportHeight = cfg.Browser.ViewportHeight
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.ProxyServer = cfg.Browser.ProxyServer
	return opts
}
