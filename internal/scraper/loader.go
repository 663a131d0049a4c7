package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
)

// LoaderOptions tunes the scroll loop.
type LoaderOptions struct {
	MaxScrolls  int
	StablePolls int
	ScrollDelay time.Duration
}

func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		MaxScrolls:  10,
		StablePolls: 2,
		ScrollDelay: 2 * time.Second,
	}
}

// LoadResult is what the loader observed when it stopped.
type LoadResult struct {
	Count        int
	Iterations   int
	Stable       bool
	HeightStalls int
}

// Loader scrolls a results page until the number of rendered cards settles.
type Loader struct {
	opts   LoaderOptions
	cards  []string
	logger *slog.Logger
}

func NewLoader(opts LoaderOptions, cardSelectors []string, logger *slog.Logger) *Loader {
	if opts.MaxScrolls <= 0 {
		opts.MaxScrolls = DefaultLoaderOptions().MaxScrolls
	}
	if opts.StablePolls <= 0 {
		opts.StablePolls = DefaultLoaderOptions().StablePolls
	}
	return &Loader{
		opts:   opts,
		cards:  cardSelectors,
		logger: logger.With("component", "loader"),
	}
}

// Load scrolls until the card count is the same on StablePolls consecutive
// polls or MaxScrolls passes are used. Browser errors inside a pass are
// logged and the pass counts as a poll of zero cards.
func (l *Loader) Load(ctx context.Context, page dom.Page) (LoadResult, error) {
	var res LoadResult

	lastHeight, err := page.Height(ctx)
	if err != nil {
		l.logger.Debug("initial height unavailable", "error", err)
	}

	lastCount := -1
	same := 0

	for res.Iterations < l.opts.MaxScrolls {
		res.Iterations++

		if err := page.ScrollToBottom(ctx); err != nil {
			l.logger.Debug("scroll failed", "error", err)
		}
		if err := sleep(ctx, l.opts.ScrollDelay); err != nil {
			return res, err
		}

		count := countCards(ctx, page, l.cards)
		l.logger.Info("cards loaded", "count", count, "pass", res.Iterations)

		if count == lastCount {
			same++
		} else {
			same = 1
		}
		lastCount = count
		res.Count = count

		if same >= l.opts.StablePolls {
			res.Stable = true
			break
		}

		height, err := page.Height(ctx)
		if err == nil {
			if height == lastHeight {
				res.HeightStalls++
			}
			lastHeight = height
		}
	}

	l.logger.Info("loading finished",
		"count", res.Count,
		"passes", res.Iterations,
		"stable", res.Stable,
		"height_stalls", res.HeightStalls,
	)

	return res, nil
}

// findCards returns the elements of the first selector that matches anything.
func findCards(ctx context.Context, page dom.Page, selectors []string) ([]dom.Element, string) {
	for _, selector := range selectors {
		cards, err := page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		if len(cards) > 0 {
			return cards, selector
		}
	}
	return nil, ""
}

func countCards(ctx context.Context, page dom.Page, selectors []string) int {
	cards, _ := findCards(ctx, page, selectors)
	return len(cards)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
