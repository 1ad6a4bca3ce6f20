package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"StaffOps/pkg/logger"
	"StaffOps/storage/database"
	"StaffOps/storage/mq"
	"StaffOps/storage/redis"
)

type closer struct {
	name  string
	close func(ctx context.Context) error
}

// 先停 MQ 不再接收或投递事件，再关 Redis，最后关数据库
var closers = []closer{
	{"rabbitmq", mq.Close},
	{"redis", redis.Close},
	{"database", database.Close},
}

// Close 依次关闭存储连接，单个失败不影响后续
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := closeAll(ctx, closers); err != nil {
		logger.Logger.Error("Storage closed with errors", zap.Error(err))
		return
	}
	logger.Logger.Info("All storage connections closed")
}

func closeAll(ctx context.Context, list []closer) error {
	var errs []error
	for _, c := range list {
		begin := time.Now()
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			continue
		}
		logger.Logger.Info("Storage connection closed",
			zap.String("component", c.name),
			zap.Duration("elapsed", time.Since(begin)),
		)
	}
	return errors.Join(errs...)
}
