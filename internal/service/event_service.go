package service

import (
	"context"
	"encoding/json"
	"time"

	"exam_paper_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// PaperEvent is the outward notification emitted on every successful
// state transition. Delivery and retry belong to the external dispatcher
// that consumes the channel, not to this service.
type PaperEvent struct {
	EventType string    `json:"event_type"`
	PaperID   uint      `json:"paper_id"`
	VersionID uint      `json:"version_id"`
	ActorID   uint      `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event PaperEvent)
}

// RedisEventPublisher pushes events onto a Redis pub/sub channel.
type RedisEventPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisEventPublisher(rdb *redis.Client, channel string) *RedisEventPublisher {
	return &RedisEventPublisher{rdb: rdb, channel: channel}
}

// Publish is fire-and-forget: a failed publish is logged, never
// propagated, because the lifecycle operation already committed.
func (p *RedisEventPublisher) Publish(ctx context.Context, event PaperEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("failed to encode paper event", zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		logger.Log.Error("failed to publish paper event",
			zap.String("event_type", event.EventType),
			zap.Uint("paper_id", event.PaperID),
			zap.Error(err))
	}
}

// NoopEventPublisher is used when Redis is disabled and in tests.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(ctx context.Context, event PaperEvent) {}
