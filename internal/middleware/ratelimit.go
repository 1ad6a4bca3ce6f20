package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"StaffOps/pkg/errors"
	"StaffOps/pkg/logger"
	"StaffOps/pkg/response"
	"StaffOps/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口
	Window time.Duration
	// 时间窗口内最大请求数
	MaxRequests int
	KeyPrefix   string
	// 已认证时按 worker_id 限流，否则按 IP
	ByUserID bool
	// 超限后禁止访问的时长，0 表示只拒绝当前请求
	BlockDuration time.Duration
}

// DefaultRateLimitConfig 按配置的每秒请求数折算为 60 秒窗口
func DefaultRateLimitConfig(rps int) RateLimitConfig {
	return RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: rps * 60,
		KeyPrefix:   "rate:limit",
		ByUserID:    true,
	}
}

// AuthRateLimitConfig 刷新令牌接口
var AuthRateLimitConfig = RateLimitConfig{
	Window:        time.Minute,
	MaxRequests:   10,
	KeyPrefix:     "auth:rate",
	BlockDuration: 15 * time.Minute,
}

type RateLimiter struct {
	rdb    goredis.Cmdable
	config RateLimitConfig
}

func NewRateLimiter(rdb goredis.Cmdable, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{rdb: rdb, config: config}
}

func (rl *RateLimiter) identifier(ctx context.Context, c *app.RequestContext) string {
	if rl.config.ByUserID {
		if userID, ok := GetUserID(ctx, c); ok {
			return "user:" + userID
		}
	}
	return "ip:" + c.ClientIP()
}

// Allow 基于 zset 的滑动窗口
func (rl *RateLimiter) Allow(ctx context.Context, id string, now time.Time) (bool, int, error) {
	key := redis.Key(rl.config.KeyPrefix, id)
	windowStart := now.Add(-rl.config.Window)

	pipe := rl.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	zcard := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, rl.config.Window+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	count := int(zcard.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) blockKey(id string) string {
	return redis.Key(rl.config.KeyPrefix, "block", id)
}

func (rl *RateLimiter) Block(ctx context.Context, id string) error {
	if rl.config.BlockDuration <= 0 {
		return nil
	}
	return rl.rdb.Set(ctx, rl.blockKey(id), "1", rl.config.BlockDuration).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, id string) (bool, error) {
	if rl.config.BlockDuration <= 0 {
		return false, nil
	}
	n, err := rl.rdb.Exists(ctx, rl.blockKey(id)).Result()
	return n > 0, err
}

// RateLimitMiddleware Redis 不可用时放行，不因限流故障拒绝业务请求
func RateLimitMiddleware(rdb goredis.Cmdable, config RateLimitConfig) app.HandlerFunc {
	limiter := NewRateLimiter(rdb, config)

	return func(ctx context.Context, c *app.RequestContext) {
		id := limiter.identifier(ctx, c)

		blocked, err := limiter.IsBlocked(ctx, id)
		if err != nil {
			logger.Logger.Warn("Failed to check block status", zap.Error(err))
			c.Next(ctx)
			return
		}
		if blocked {
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		now := time.Now()
		allowed, count, err := limiter.Allow(ctx, id, now)
		if err != nil {
			logger.Logger.Warn("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(config.Window).Unix(), 10))

		if !allowed {
			if err := limiter.Block(ctx, id); err != nil {
				logger.Logger.Warn("Failed to block client", zap.String("id", id), zap.Error(err))
			}
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}
