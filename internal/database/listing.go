package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/maltedev/wb-listing-scraper/internal/models"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS scrape_sessions (
	id           UUID PRIMARY KEY,
	query        TEXT NOT NULL,
	url          TEXT NOT NULL,
	cards_seen   INTEGER NOT NULL DEFAULT 0,
	cards_failed INTEGER NOT NULL DEFAULT 0,
	accepted     INTEGER NOT NULL DEFAULT 0,
	started_at   TIMESTAMPTZ NOT NULL,
	elapsed_ms   BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS product_listings (
	session_id UUID NOT NULL REFERENCES scrape_sessions(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	brand      TEXT NOT NULL,
	name       TEXT NOT NULL,
	price      TEXT NOT NULL,
	rating     TEXT NOT NULL,
	reviews    TEXT NOT NULL,
	link       TEXT NOT NULL,
	parse_date TEXT NOT NULL,
	PRIMARY KEY (session_id, position)
);

CREATE INDEX IF NOT EXISTS idx_product_listings_link ON product_listings (link);
`

// SessionRow is a stored search session without its records.
type SessionRow struct {
	ID          uuid.UUID `json:"id"`
	Query       string    `json:"query"`
	URL         string    `json:"url"`
	CardsSeen   int       `json:"cards_seen"`
	CardsFailed int       `json:"cards_failed"`
	Accepted    int       `json:"accepted"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedMS   int64     `json:"elapsed_ms"`
}

// Migrate creates the tables when they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveSession stores a session and its records atomically.
func (db *DB) SaveSession(ctx context.Context, s *models.Session) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scrape_sessions
				(id, query, url, cards_seen, cards_failed, accepted, started_at, elapsed_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, s.Query, s.URL, s.CardsSeen, s.CardsFailed, len(s.Records),
			s.StartedAt, s.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		if len(s.Records) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for i, r := range s.Records {
			batch.Queue(`
				INSERT INTO product_listings
					(session_id, position, brand, name, price, rating, reviews, link, parse_date)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				s.ID, i+1, r.Brand, r.Name, r.Price, r.Rating, r.Reviews, r.Link, r.ParseDate,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert listings: %w", err)
		}
		return nil
	})
}

// GetSession returns the stored session header.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (*SessionRow, error) {
	row := &SessionRow{}
	err := db.pool.QueryRow(ctx, `
		SELECT id, query, url, cards_seen, cards_failed, accepted, started_at, elapsed_ms
		FROM scrape_sessions
		WHERE id = $1`, id,
	).Scan(&row.ID, &row.Query, &row.URL, &row.CardsSeen, &row.CardsFailed,
		&row.Accepted, &row.StartedAt, &row.ElapsedMS)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return row, nil
}

// GetSessionRecords returns the records of a session in extraction order.
func (db *DB) GetSessionRecords(ctx context.Context, id uuid.UUID) ([]models.ProductRecord, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT brand, name, price, rating, reviews, link, parse_date
		FROM product_listings
		WHERE session_id = $1
		ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var records []models.ProductRecord
	for rows.Next() {
		var r models.ProductRecord
		if err := rows.Scan(&r.Brand, &r.Name, &r.Price, &r.Rating, &r.Reviews, &r.Link, &r.ParseDate); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// RecentSessions returns the latest sessions, newest first.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]*SessionRow, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, query, url, cards_seen, cards_failed, accepted, started_at, elapsed_ms
		FROM scrape_sessions
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*SessionRow
	for rows.Next() {
		s := &SessionRow{}
		if err := rows.Scan(&s.ID, &s.Query, &s.URL, &s.CardsSeen, &s.CardsFailed,
			&s.Accepted, &s.StartedAt, &s.ElapsedMS); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}
