package cache

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"StaffOps/storage/redis"
)

const (
	messageProcessedPrefix = "message:processed"

	processingTTL = 5 * time.Minute
	processedTTL  = 48 * time.Hour
)

// MessageMarker 消费端幂等标记：processing -> completed，失败时删除以便重投
type MessageMarker struct {
	rdb goredis.Cmdable
}

func NewMessageMarker(rdb goredis.Cmdable) *MessageMarker {
	return &MessageMarker{rdb: rdb}
}

// TryMarkProcessing 返回 true 表示首次处理，false 表示重复消息或其他消费者正在处理
func (m *MessageMarker) TryMarkProcessing(ctx context.Context, messageID string) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)

	ok, err := m.rdb.SetNX(ctx, key, "processing", processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return ok, nil
}

// MarkProcessed 处理成功后延长 TTL
func (m *MessageMarker) MarkProcessed(ctx context.Context, messageID string) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	return m.rdb.Set(ctx, key, "completed", processedTTL).Err()
}

// Unmark 处理失败时调用，允许重试
func (m *MessageMarker) Unmark(ctx context.Context, messageID string) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	return m.rdb.Del(ctx, key).Err()
}
