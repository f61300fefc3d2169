// Package broker provides the Redis Streams message broker connecting the
// pipeline stages. Messages are small JSON envelopes carrying an article
// identifier; delivery is at-least-once with manual acknowledgment, so
// handlers must be idempotent.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/threatwatch/pipeline/internal/config"
)

const (
	// defaultConnectTimeout bounds the initial connection check.
	defaultConnectTimeout = 2 * time.Second
)

// EnvelopeField is the stream entry field holding the JSON event envelope.
const EnvelopeField = "event"

// DeadSuffix is appended to a stream name to form its dead-letter stream.
const DeadSuffix = ":dead"

// StreamsClient wraps a Redis client with the stream naming scheme shared
// by publishers and consumers.
type StreamsClient struct {
	client *redis.Client
	prefix string
}

// NewStreamsClient connects to Redis and verifies the connection.
func NewStreamsClient(cfg config.RedisConfig) (*StreamsClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &StreamsClient{client: client, prefix: cfg.StreamPrefix}, nil
}

// NewStreamsClientFromRedis wraps an existing Redis client. Used by tests.
func NewStreamsClientFromRedis(client *redis.Client, prefix string) *StreamsClient {
	if prefix == "" {
		prefix = "articles"
	}
	return &StreamsClient{client: client, prefix: prefix}
}

// StreamName returns the full stream key for a pipeline channel
// (e.g. "articles:ingested").
func (c *StreamsClient) StreamName(channel string) string {
	return fmt.Sprintf("%s:%s", c.prefix, channel)
}

// DeadStreamName returns the dead-letter stream key for a channel.
func (c *StreamsClient) DeadStreamName(channel string) string {
	return c.StreamName(channel) + DeadSuffix
}

// Ping checks if Redis is reachable.
func (c *StreamsClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (c *StreamsClient) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client for advanced operations.
func (c *StreamsClient) Client() *redis.Client {
	return c.client
}

// CreateConsumerGroup creates a consumer group for a stream if it doesn't
// exist, starting from the beginning of the stream.
func (c *StreamsClient) CreateConsumerGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func isGroupExistsError(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
