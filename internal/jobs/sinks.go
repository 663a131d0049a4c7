package jobs

import (
	"context"
	"log/slog"

	"github.com/maltedev/wb-listing-scraper/internal/config"
	"github.com/maltedev/wb-listing-scraper/internal/database"
	"github.com/maltedev/wb-listing-scraper/internal/events"
	"github.com/maltedev/wb-listing-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
)

// Sinks are the persistence targets enabled by configuration. A sink that
// cannot be opened is logged and left out.
type Sinks struct {
	History *storage.SessionStore
	DB      *database.DB
	Redis   *redis.Client
	Events  *events.Publisher
}

func OpenSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Sinks {
	s := &Sinks{}

	if cfg.Output.HistoryFile != "" {
		history, err := storage.NewSessionStore(cfg.Output.HistoryFile)
		if err != nil {
			logger.Warn("session history disabled", "file", cfg.Output.HistoryFile, "error", err)
		} else {
			s.History = history
		}
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Warn("database disabled", "error", err)
		} else if err := db.Migrate(ctx); err != nil {
			logger.Warn("database disabled", "error", err)
			db.Close()
		} else {
			s.DB = db
		}
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("event stream disabled", "addr", cfg.Redis.Addr, "error", err)
			client.Close()
		} else {
			s.Redis = client
			s.Events = events.NewPublisher(client, cfg.Redis.Stream, logger)
		}
	}

	return s
}

// RunnerOptions returns the open sinks as runner options.
func (s *Sinks) RunnerOptions(limiter Limiter) RunnerOptions {
	opts := RunnerOptions{Limiter: limiter}
	if s.History != nil {
		opts.History = s.History
	}
	if s.DB != nil {
		opts.DB = s.DB
	}
	if s.Events != nil {
		opts.Publisher = s.Events
	}
	return opts
}

func (s *Sinks) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
}
