package analytics

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cesdash/cesdash/internal/metrics"
)

const (
	// StreamKey is the Redis stream for CES score updates.
	StreamKey = "stream:ces_score_updates"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 250 * time.Millisecond
)

// ScoreEvent records a CES score written back to a ticket.
type ScoreEvent struct {
	ID        string `json:"id"`
	TicketID  string `json:"tid"`
	Score     int    `json:"score"`
	Source    string `json:"src"`
	UpdatedAt int64  `json:"t"` // Unix milliseconds
}

// NewScoreEvent builds an event with a fresh ULID.
func NewScoreEvent(ticketID string, score int, source string, at time.Time) ScoreEvent {
	return ScoreEvent{
		ID:        ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		TicketID:  ticketID,
		Score:     score,
		Source:    source,
		UpdatedAt: at.UnixMilli(),
	}
}

// Publisher enqueues score events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new score event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "analytics.publisher"),
		metrics: recorder,
	}
}

// Publish adds a score event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event ScoreEvent) (string, error) {
	if err := ValidateScoreEvent(event); err != nil {
		return "", fmt.Errorf("invalid event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event ScoreEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish score event",
				"ticket_id", event.TicketID,
				"error", err,
			)
			p.metrics.IncScoreEventPublished("dropped")
			return
		}

		p.logger.Debug("score event published",
			"ticket_id", event.TicketID,
			"event_id", event.ID,
			"stream_id", streamID,
		)
		p.metrics.IncScoreEventPublished("success")
	}()
}
