package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

// Publisher appends article events to pipeline streams.
type Publisher struct {
	client *StreamsClient
	log    logger.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(client *StreamsClient, log logger.Logger) *Publisher {
	return &Publisher{client: client, log: log}
}

// Publish appends an event envelope to the given channel's stream.
func (p *Publisher) Publish(ctx context.Context, channel string, event domain.ArticleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	stream := p.client.StreamName(channel)
	result := p.client.Client().XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{EnvelopeField: string(payload)},
	})

	if publishErr := result.Err(); publishErr != nil {
		p.log.Error("Failed to publish event",
			logger.String("stream", stream),
			logger.String("article_id", event.ArticleID.String()),
			logger.Error(publishErr),
		)
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	p.log.Debug("Published event",
		logger.String("stream", stream),
		logger.String("article_id", event.ArticleID.String()),
		logger.String("stream_id", result.Val()),
	)

	return nil
}
