package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"StaffOps/config"
	redisotel "StaffOps/pkg/redis"
)

const defaultPrefix = "staffops"

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

func options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisPoolSize / 4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	}
}

// Init 建立连接并 Ping；锁、限流、令牌、消息去重共用这一个客户端
func Init() error {
	once.Do(func() {
		cfg := config.Cfg
		c := redis.NewClient(options(&cfg))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			initErr = fmt.Errorf("failed to ping redis %s: %w", cfg.RedisAddr, err)
			return
		}

		if cfg.OTelEnabled {
			redisotel.InstrumentClient(c, cfg.ServiceName, cfg.RedisDB)
		}
		client = c
	})
	return initErr
}

func Client() *redis.Client {
	if client == nil {
		panic("redis client not initialized")
	}
	return client
}

// Ping 供健康检查使用
func Ping(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return client.Ping(ctx).Err()
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Key 拼接带全局前缀的 key，例如 staffops:lock:sweep；空段会被跳过
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	segs := make([]string, 0, len(parts)+1)
	segs = append(segs, prefix)
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, ":")
}
