package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/wb-listing-scraper/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeListingExtracted is published once per accepted record
	EventTypeListingExtracted EventType = "LISTING_EXTRACTED"
	// EventTypeSearchCompleted closes the events of one search session
	EventTypeSearchCompleted EventType = "SEARCH_COMPLETED"
)

// StreamWriter is the part of the redis client the publisher needs.
type StreamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// ListingPayload represents the payload for LISTING_EXTRACTED
type ListingPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Position  int       `json:"position"`
	models.ProductRecord
}

// SearchCompletedPayload represents the payload for SEARCH_COMPLETED
type SearchCompletedPayload struct {
	EventID     string        `json:"event_id"`
	EventType   string        `json:"event_type"`
	Timestamp   time.Time     `json:"timestamp"`
	SessionID   string        `json:"session_id"`
	Query       string        `json:"query"`
	URL         string        `json:"url"`
	Accepted    int           `json:"accepted"`
	CardsSeen   int           `json:"cards_seen"`
	CardsFailed int           `json:"cards_failed"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Publisher writes search results to a redis stream.
type Publisher struct {
	client StreamWriter
	stream string
	maxLen int64
	now    func() time.Time
	logger *slog.Logger
}

func NewPublisher(client StreamWriter, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		maxLen: 100000,
		now:    time.Now,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishSession emits one LISTING_EXTRACTED event per record followed by
// SEARCH_COMPLETED. It stops at the first failed write.
func (p *Publisher) PublishSession(ctx context.Context, s *models.Session) error {
	sessionID := s.ID.String()

	for i, rec := range s.Records {
		payload := &ListingPayload{
			EventID:       uuid.New().String(),
			EventType:     string(EventTypeListingExtracted),
			Timestamp:     p.now(),
			SessionID:     sessionID,
			Query:         s.Query,
			Position:      i + 1,
			ProductRecord: rec,
		}
		if err := p.publish(ctx, EventTypeListingExtracted, payload.EventID, sessionID, payload); err != nil {
			return err
		}
	}

	done := &SearchCompletedPayload{
		EventID:     uuid.New().String(),
		EventType:   string(EventTypeSearchCompleted),
		Timestamp:   p.now(),
		SessionID:   sessionID,
		Query:       s.Query,
		URL:         s.URL,
		Accepted:    len(s.Records),
		CardsSeen:   s.CardsSeen,
		CardsFailed: s.CardsFailed,
		Elapsed:     s.Elapsed,
	}
	if err := p.publish(ctx, EventTypeSearchCompleted, done.EventID, sessionID, done); err != nil {
		return err
	}

	p.logger.Info("session published",
		"stream", p.stream,
		"session_id", sessionID,
		"events", len(s.Records)+1,
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, eventID, sessionID string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":   eventID,
			"event_type": string(eventType),
			"session_id": sessionID,
			"payload":    string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug("event published", "type", eventType, "event_id", eventID, "stream_id", id)
	return nil
}
