package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"StaffOps/config"
	"StaffOps/pkg/logger"
)

func TestGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Logger
	logger.Logger = zap.New(core)
	t.Cleanup(func() { logger.Logger = prev })

	l := newGormLogger("INFO")
	sql := func() (string, int64) { return "SELECT 1", 1 }
	ctx := context.Background()

	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), sql, gorm.ErrDuplicatedKey)
	require.Zero(t, logs.Len())

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	require.Equal(t, 1, logs.FilterMessage("Slow SQL").Len())

	l.Trace(ctx, time.Now(), sql, gorm.ErrInvalidTransaction)
	require.Equal(t, 1, logs.FilterMessage("SQL failed").Len())

	l.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sql, gorm.ErrInvalidTransaction)
	require.Equal(t, 1, logs.FilterMessage("SQL failed").Len())
}

func TestPoolFromConfig(t *testing.T) {
	p := poolFromConfig(&config.Config{PostgreSQLMaxIdle: 5, PostgreSQLMaxOpen: 50})
	require.Equal(t, 5, p.maxIdle)
	require.Equal(t, 50, p.maxOpen)
}
