package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"StaffOps/pkg/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger 把 gorm 日志转成结构化 zap 日志；慢查询与错误带上 SQL 与行数
type gormLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(level string) gormlogger.Interface {
	l := gormlogger.Warn
	switch strings.ToUpper(level) {
	case "DEBUG":
		l = gormlogger.Info
	case "ERROR":
		l = gormlogger.Error
	}
	return &gormLogger{level: l, slow: slowQueryThreshold}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		logger.WithContext(ctx, logger.Logger).Sugar().Infof(msg, args...)
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		logger.WithContext(ctx, logger.Logger).Sugar().Warnf(msg, args...)
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		logger.WithContext(ctx, logger.Logger).Sugar().Errorf(msg, args...)
	}
}

func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	// 业务查询的未命中与唯一键冲突由仓储层翻译，不记为错误
	case err != nil && g.level >= gormlogger.Error &&
		!errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey):
		sql, rows := fc()
		logger.WithContext(ctx, logger.Logger).Error("SQL failed",
			zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case elapsed > g.slow && g.level >= gormlogger.Warn:
		sql, rows := fc()
		logger.WithContext(ctx, logger.Logger).Warn("Slow SQL",
			zap.Duration("elapsed", elapsed), zap.Duration("threshold", g.slow), zap.Int64("rows", rows), zap.String("sql", sql))
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		logger.WithContext(ctx, logger.Logger).Debug("SQL",
			zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
