package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maltedev/wb-listing-scraper/internal/dom"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/maltedev/wb-listing-scraper/internal/storage"
)

type Searcher interface {
	SearchProducts(ctx context.Context, b dom.Browser, query string) (*models.Session, error)
}

type SessionSaver interface {
	SaveSession(ctx context.Context, s *models.Session) error
}

type SessionPublisher interface {
	PublishSession(ctx context.Context, s *models.Session) error
}

type History interface {
	Add(sum *storage.SessionSummary) error
}

type Limiter interface {
	Wait(ctx context.Context) error
}

// RunnerOptions lists the optional sinks of a Runner. Nil fields are skipped.
type RunnerOptions struct {
	Limiter   Limiter
	History   History
	DB        SessionSaver
	Publisher SessionPublisher
}

// Runner executes searches one at a time on a single browser and records
// every finished session.
type Runner struct {
	searcher  Searcher
	browser   dom.Browser
	limiter   Limiter
	history   History
	db        SessionSaver
	publisher SessionPublisher
	mu        sync.Mutex
	logger    *slog.Logger
}

func NewRunner(searcher Searcher, b dom.Browser, opts RunnerOptions, logger *slog.Logger) *Runner {
	return &Runner{
		searcher:  searcher,
		browser:   b,
		limiter:   opts.Limiter,
		history:   opts.History,
		db:        opts.DB,
		publisher: opts.Publisher,
		logger:    logger.With("component", "runner"),
	}
}

// Run performs one search. Concurrent callers are serialized.
func (r *Runner) Run(ctx context.Context, query string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	session, err := r.searcher.SearchProducts(ctx, r.browser, query)
	if session != nil {
		r.Record(ctx, session, err)
	}
	return session, err
}

// Record writes session to the history and, for successful searches, to the
// database and the event stream. Sink failures are logged and ignored.
func (r *Runner) Record(ctx context.Context, session *models.Session, searchErr error) {
	if r.history != nil {
		if err := r.history.Add(storage.Summarize(session, searchErr)); err != nil {
			r.logger.Warn("failed to record session history", "session_id", session.ID, "error", err)
		}
	}

	if searchErr != nil {
		return
	}

	if r.db != nil {
		if err := r.db.SaveSession(ctx, session); err != nil {
			r.logger.Warn("failed to store session", "session_id", session.ID, "error", err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.PublishSession(ctx, session); err != nil {
			r.logger.Warn("failed to publish session", "session_id", session.ID, "error", err)
		}
	}
}
