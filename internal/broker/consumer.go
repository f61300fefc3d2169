package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

const (
	// defaultBlockTimeout is the block timeout for stream reads.
	defaultBlockTimeout = 5 * time.Second

	// readErrorBackoff is how long to wait after a failed read before
	// retrying.
	readErrorBackoff = time.Second

	// maxPendingCheck caps how many pending entries are inspected per
	// reclaim pass.
	maxPendingCheck = 100
)

// Handler processes a single article event. Returning an error leaves the
// message pending for redelivery, so handlers must tolerate duplicate and
// out-of-date triggers.
type Handler interface {
	Handle(ctx context.Context, event domain.ArticleEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event domain.ArticleEvent) error

// Handle calls the function.
func (f HandlerFunc) Handle(ctx context.Context, event domain.ArticleEvent) error {
	return f(ctx, event)
}

// ConsumerConfig holds configuration for a stream consumer.
type ConsumerConfig struct {
	Channel       string        // Pipeline channel to consume (e.g. "ingested")
	Group         string        // Consumer group name
	ConsumerID    string        // Unique consumer identifier ("" = generated)
	Prefetch      int           // Max unacknowledged messages in flight
	MaxDeliveries int           // Delivery attempts before dead-lettering
	ClaimMinIdle  time.Duration // Min idle time before reclaiming pending messages
	BlockTimeout  time.Duration // Block timeout for reads (0 = default)
	OnDeadLetter  func()        // Invoked after a message is dead-lettered (optional)
}

// Consumer reads article events from one pipeline stream using a consumer
// group. At most Prefetch messages are unacknowledged at a time: each read
// batch is bounded by Prefetch and fully handled before the next read, so
// a slow handler applies backpressure instead of piling up deliveries.
type Consumer struct {
	client        *StreamsClient
	channel       string
	group         string
	consumerID    string
	prefetch      int64
	maxDeliveries int64
	claimMinIdle  time.Duration
	blockTimeout  time.Duration
	handler       Handler
	log           logger.Logger
	onDeadLetter  func()
}

// NewConsumer creates a consumer for one pipeline channel.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig, handler Handler, log logger.Logger) (*Consumer, error) {
	if cfg.Channel == "" {
		return nil, errors.New("channel is required")
	}
	if cfg.Group == "" {
		return nil, errors.New("consumer group is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}

	consumerID := cfg.ConsumerID
	if consumerID == "" {
		consumerID = fmt.Sprintf("%s-%s", cfg.Group, uuid.New().String()[:8])
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	claimMinIdle := cfg.ClaimMinIdle
	if claimMinIdle <= 0 {
		claimMinIdle = 30 * time.Second
	}

	return &Consumer{
		client:        client,
		channel:       cfg.Channel,
		group:         cfg.Group,
		consumerID:    consumerID,
		prefetch:      int64(prefetch),
		maxDeliveries: int64(maxDeliveries),
		claimMinIdle:  claimMinIdle,
		blockTimeout:  blockTimeout,
		handler:       handler,
		log:           log,
		onDeadLetter:  cfg.OnDeadLetter,
	}, nil
}

// Run consumes the stream until ctx is cancelled. In-flight handlers are
// drained before it returns.
func (c *Consumer) Run(ctx context.Context) error {
	stream := c.client.StreamName(c.channel)
	if err := c.client.CreateConsumerGroup(ctx, stream, c.group); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	c.log.Info("Starting consumer",
		logger.String("stream", stream),
		logger.String("group", c.group),
		logger.String("consumer_id", c.consumerID),
		logger.Int64("prefetch", c.prefetch),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.reclaimLoop(ctx)
	}()

	for ctx.Err() == nil {
		c.readAndProcess(ctx)
	}

	wg.Wait()
	c.log.Info("Consumer stopped", logger.String("stream", stream))
	return nil
}

// readAndProcess reads up to prefetch new messages and handles them
// concurrently, waiting for the whole batch before the next read.
func (c *Consumer) readAndProcess(ctx context.Context) {
	stream := c.client.StreamName(c.channel)

	streams, err := c.client.Client().XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerID,
		Streams:  []string{stream, ">"},
		Count:    c.prefetch,
		Block:    c.blockTimeout,
	}).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("Failed to read from stream",
			logger.String("stream", stream),
			logger.Error(err),
		)
		time.Sleep(readErrorBackoff)
		return
	}

	var wg sync.WaitGroup
	for _, s := range streams {
		for _, msg := range s.Messages {
			wg.Add(1)
			go func(m redis.XMessage) {
				defer wg.Done()
				c.processMessage(ctx, m)
			}(msg)
		}
	}
	wg.Wait()
}

// processMessage parses and handles one delivery. A handler error leaves
// the message pending so the reclaim loop can redeliver it; an unparsable
// envelope can never succeed and goes straight to the dead-letter stream.
func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) {
	stream := c.client.StreamName(c.channel)

	raw, ok := msg.Values[EnvelopeField].(string)
	if !ok {
		c.log.Error("Invalid message format", logger.String("stream_id", msg.ID))
		c.deadLetter(ctx, msg)
		return
	}

	var event domain.ArticleEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		c.log.Error("Failed to unmarshal event",
			logger.String("stream_id", msg.ID),
			logger.Error(err),
		)
		c.deadLetter(ctx, msg)
		return
	}

	if err := c.handler.Handle(ctx, event); err != nil {
		c.log.Error("Failed to handle event",
			logger.String("stream", stream),
			logger.String("stream_id", msg.ID),
			logger.String("article_id", event.ArticleID.String()),
			logger.Error(err),
		)
		return // not acked; redelivered after claimMinIdle
	}

	c.ack(ctx, msg.ID)
}

// reclaimLoop periodically redelivers pending messages whose consumer went
// quiet, dead-lettering those that exhausted their delivery budget.
func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.claimMinIdle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reclaimPending(ctx)
		}
	}
}

// reclaimPending inspects the pending entries list and either claims stale
// messages for reprocessing or routes exhausted ones to the dead-letter
// stream. The retry counter lives in the Redis PEL, so no side table is
// needed.
func (c *Consumer) reclaimPending(ctx context.Context) {
	stream := c.client.StreamName(c.channel)

	pending, err := c.client.Client().XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  maxPendingCheck,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			c.log.Error("Failed to list pending entries", logger.Error(err))
		}
		return
	}

	var toClaim []string
	for _, entry := range pending {
		if entry.Idle < c.claimMinIdle {
			continue
		}
		if entry.RetryCount >= c.maxDeliveries {
			c.deadLetterPending(ctx, entry.ID)
			continue
		}
		toClaim = append(toClaim, entry.ID)
	}

	if len(toClaim) == 0 {
		return
	}

	claimed, claimErr := c.client.Client().XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    c.group,
		Consumer: c.consumerID,
		MinIdle:  c.claimMinIdle,
		Messages: toClaim,
	}).Result()
	if claimErr != nil {
		if !errors.Is(claimErr, redis.Nil) {
			c.log.Error("Failed to claim pending messages", logger.Error(claimErr))
		}
		return
	}

	for _, msg := range claimed {
		c.log.Info("Reclaimed pending message",
			logger.String("stream", stream),
			logger.String("stream_id", msg.ID),
		)
		c.processMessage(ctx, msg)
	}
}

// deadLetterPending claims a single exhausted message and moves it to the
// dead-letter stream.
func (c *Consumer) deadLetterPending(ctx context.Context, id string) {
	stream := c.client.StreamName(c.channel)

	claimed, err := c.client.Client().XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    c.group,
		Consumer: c.consumerID,
		MinIdle:  c.claimMinIdle,
		Messages: []string{id},
	}).Result()
	if err != nil || len(claimed) == 0 {
		return
	}

	c.deadLetter(ctx, claimed[0])
}

// deadLetter copies a message to the dead-letter stream and acknowledges
// the original so it stops looping.
func (c *Consumer) deadLetter(ctx context.Context, msg redis.XMessage) {
	dead := c.client.DeadStreamName(c.channel)

	values := make(map[string]any, len(msg.Values)+1)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["origin_id"] = msg.ID

	if err := c.client.Client().XAdd(ctx, &redis.XAddArgs{
		Stream: dead,
		Values: values,
	}).Err(); err != nil {
		c.log.Error("Failed to dead-letter message",
			logger.String("stream_id", msg.ID),
			logger.Error(err),
		)
		return // keep pending rather than lose the message
	}

	c.log.Warn("Message dead-lettered",
		logger.String("stream", dead),
		logger.String("stream_id", msg.ID),
	)
	if c.onDeadLetter != nil {
		c.onDeadLetter()
	}
	c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	stream := c.client.StreamName(c.channel)
	if err := c.client.Client().XAck(ctx, stream, c.group, id).Err(); err != nil {
		c.log.Error("Failed to ACK message",
			logger.String("stream_id", id),
			logger.Error(err),
		)
	}
}
