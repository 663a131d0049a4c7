package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/browser"
	"github.com/maltedev/wb-listing-scraper/internal/config"
	"github.com/maltedev/wb-listing-scraper/internal/console"
	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/jobs"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/maltedev/wb-listing-scraper/internal/parser"
	"github.com/maltedev/wb-listing-scraper/internal/ratelimit"
	"github.com/maltedev/wb-listing-scraper/internal/scraper"
	"github.com/maltedev/wb-listing-scraper/internal/storage"
	"github.com/maltedev/wb-listing-scraper/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	var (
		query    = fs.String("query", "", "Search query (prompted when empty)")
		save     = fs.Bool("save", false, "Save results to CSV without asking")
		htmlFile = fs.String("html", "", "Parse a saved search results page instead of opening a browser")
		headless = fs.Bool("headless", true, "Run browser in headless mode (overrides BROWSER_HEADLESS when set)")
		outDir   = fs.String("out", "", "Directory for CSV files (default from OUTPUT_DIR)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompter := console.NewPrompter(stdin, stdout)

	q := *query
	if q == "" {
		q = prompter.Query(cfg.Site.DefaultQuery)
	}

	sinks := jobs.OpenSinks(ctx, cfg, logger)
	defer sinks.Close()

	svcOpts := scraper.Options{
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
		Pause: ratelimit.NewPause(cfg.Scraper.PauseMin, cfg.Scraper.PauseMax),
	}
	if *htmlFile != "" {
		svcOpts.Pause = nil
		svcOpts.Loader.ScrollDelay = 0
	}
	service := scraper.NewService(svcOpts, logger)

	var session *models.Session
	search := func(b dom.Browser) {
		runner := jobs.NewRunner(service, b, sinks.RunnerOptions(nil), logger)

		var searchErr *scraper.SearchError
		var err error
		session, err = runner.Run(ctx, q)
		if errors.As(err, &searchErr) {
			logger.Error("Search failed, no results", "stage", searchErr.Stage, "error", searchErr.Err)
		} else if err != nil {
			logger.Error("Search aborted", "error", err)
		}
	}

	if *htmlFile != "" {
		snapshot, err := parser.LoadSnapshot(*htmlFile)
		if err != nil {
			logger.Error("Failed to load snapshot", "file", *htmlFile, "error", err)
			return 1
		}
		search(snapshot)
	} else {
		opts := browserOptions(cfg)
		opts.Headless = resolveHeadless(fs, *headless, cfg.Browser.Headless)

		if err := browser.Run(opts, func(b *browser.Browser) error {
			search(b)
			return nil
		}); err != nil {
			logger.Error("Failed to initialize browser", "error", err)
			return 1
		}
	}

	var records []models.ProductRecord
	if session != nil {
		records = session.Records
		fmt.Fprintf(stdout, "\nParsed %d of %d cards in %s\n", len(records), session.CardsSeen, session.Elapsed.Round(time.Millisecond))
	}

	console.DisplayResults(stdout, q, records)

	if len(records) == 0 {
		return 0
	}

	if !*save && !prompter.Confirm("Save results to CSV?") {
		return 0
	}

	dir := *outDir
	if dir == "" {
		dir = cfg.Output.Dir
	}

	saveResults(stdout, dir, q, session, sinks, logger)
	return 0
}

// saveResults writes the CSV and records its path. Failures are reported
// and do not change the exit code.
func saveResults(stdout io.Writer, dir, query string, session *models.Session, sinks *jobs.Sinks, logger *slog.Logger) {
	path, err := storage.SaveCSV(dir, query, session.Records, time.Now())
	if err != nil {
		logger.Error("Failed to save CSV", "error", err)
		return
	}
	fmt.Fprintf(stdout, "Saved %d products to %s\n", len(session.Records), path)

	if sinks.History != nil {
		if err := sinks.History.SetCSVPath(session.ID.String(), path); err != nil {
			logger.Warn("Failed to update session history", "error", err)
		}
	}
}

// resolveHeadless lets an explicit -headless flag win over the config.
func resolveHeadless(fs *flag.FlagSet, flagValue, cfgValue bool) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			set = true
		}
	})
	if set {
		return flagValue
	}
	return cfgValue
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
