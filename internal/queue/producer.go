package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Completion is an enrichment result ready to be folded back into the
// recency caches: a media message's derived summary.
type Completion struct {
	MessageID int64
	UserID    int64
	GroupID   int64
	Summary   string
	CreatedAt string
	Attempt   int
}

type Producer interface {
	Enqueue(ctx context.Context, c Completion) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, c Completion) error {
	attempt := c.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"message_id": c.MessageID,
		"user_id":    c.UserID,
		"group_id":   c.GroupID,
		"summary":    c.Summary,
		"created_at": c.CreatedAt,
		"attempt":    attempt,
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue completion: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued enrichment completion", "message_id", c.MessageID, "user_id", c.UserID, "group_id", c.GroupID, "attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
