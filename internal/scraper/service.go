package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/metrics"
	"github.com/maltedev/wb-listing-scraper/internal/models"
)

// Pauser inserts a human-like pause before the page is worked on.
type Pauser interface {
	Wait(ctx context.Context) error
}

type Options struct {
	Site    Site
	Rules   Rules
	Loader  LoaderOptions
	Pause   Pauser
	Metrics *metrics.Metrics
}

// Service runs a complete search: navigate, load, extract.
type Service struct {
	site      Site
	rules     Rules
	loader    *Loader
	extractor *Extractor
	pause     Pauser
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(opts Options, logger *slog.Logger) *Service {
	if opts.Site.Origin == "" {
		opts.Site = DefaultSite()
	}
	if len(opts.Rules.Cards) == 0 {
		opts.Rules = DefaultRules()
	}

	return &Service{
		site:      opts.Site,
		rules:     opts.Rules,
		loader:    NewLoader(opts.Loader, opts.Rules.Cards, logger),
		extractor: NewExtractor(opts.Rules, opts.Site),
		pause:     opts.Pause,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "search"),
	}
}

// SearchProducts opens the results page for query on b and returns the
// accepted records in document order. On a *SearchError the returned
// session keeps its counters but holds no records.
func (s *Service) SearchProducts(ctx context.Context, b dom.Browser, query string) (*models.Session, error) {
	session := models.NewSession(query)
	session.URL = s.site.SearchURLFor(query)

	err := s.search(ctx, b, session)
	session.Elapsed = time.Since(session.StartedAt)

	s.metrics.ObserveSearch(session.Elapsed)
	if err != nil {
		session.Records = nil
		s.metrics.IncSearch(errorTypeLabel(err))
		s.logger.Error("search failed", "query", query, "error", err)
		return session, err
	}
	s.metrics.IncSearch("ok")

	s.logger.Info("search completed",
		"query", query,
		"session_id", session.ID,
		"accepted", len(session.Records),
		"cards", session.CardsSeen,
		"elapsed", session.Elapsed,
	)
	return session, nil
}

func (s *Service) search(ctx context.Context, b dom.Browser, session *models.Session) error {
	s.logger.Info("starting search", "query", session.Query, "url", session.URL)

	page, err := b.Open(ctx, session.URL)
	if err != nil {
		return &SearchError{Query: session.Query, Stage: "navigate", Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Warn("failed to close page", "error", err)
		}
	}()

	if s.pause != nil {
		if err := s.pause.Wait(ctx); err != nil {
			return &SearchError{Query: session.Query, Stage: "pause", Err: err}
		}
	}

	loaded, err := s.loader.Load(ctx, page)
	if err != nil {
		return &SearchError{Query: session.Query, Stage: "load", Err: err}
	}
	s.metrics.ObserveScrolls(loaded.Iterations)

	cards, selector := findCards(ctx, page, s.rules.Cards)
	if len(cards) == 0 {
		s.logger.Warn("no product cards found", "query", session.Query)
		return nil
	}
	s.logger.Info("processing cards", "count", len(cards), "selector", selector)

	return s.extractAll(ctx, cards, session)
}

func (s *Service) extractAll(ctx context.Context, cards []dom.Element, session *models.Session) error {
	total := len(cards)
	session.CardsSeen = total
	s.metrics.AddCards(total)

	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			return &SearchError{Query: session.Query, Stage: "extract", Err: err}
		}

		n := i + 1
		if n%10 == 0 || n == total {
			s.logger.Info("extraction progress", "done", n, "total", total)
		}

		rec, err := s.extractor.Extract(ctx, n, card)
		switch {
		case err == nil:
			session.Records = append(session.Records, rec)
			s.metrics.IncAccepted()
		case errors.Is(err, ErrRecordRejected):
			s.metrics.IncSkipped("rejected")
		default:
			session.CardsFailed++
			s.metrics.IncSkipped("error")
			s.logger.Warn("card skipped", "index", n, "error", err)
		}
	}

	s.logger.Info("extraction finished", "accepted", len(session.Records), "total", total)
	return nil
}
