package middleware

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"StaffOps/config"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/logger"
	"StaffOps/pkg/response"
)

type RecoverConfig struct {
	EnableStackTrace bool
	// 生产环境不向调用方暴露 panic 内容
	HideDetails bool
	// 每次 panic 后回调，可接入告警
	OnPanic func(ctx context.Context, c *app.RequestContext, recovered interface{}, stack []byte)
}

func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(RecoverConfig{
		EnableStackTrace: true,
		HideDetails:      config.Cfg.IsProduction(),
	})
}

func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(ctx, c, r, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, r interface{}, cfg RecoverConfig) {
	var stack []byte
	if cfg.EnableStackTrace {
		stack = debug.Stack()
	}

	_, isRuntime := r.(runtime.Error)
	fields := []zap.Field{
		zap.Any("panic", r),
		zap.Bool("runtime_error", isRuntime),
		zap.String("route", routeOf(c)),
		zap.String("method", string(c.Method())),
		zap.String("request_id", c.GetString(response.RequestIDKey)),
	}
	if workerID, ok := GetUserID(ctx, c); ok {
		fields = append(fields, zap.String("worker_id", workerID))
	}
	if len(stack) > 0 {
		fields = append(fields, zap.ByteString("stack", stack))
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(fmt.Errorf("panic: %v", r))
		span.SetStatus(codes.Error, "panic recovered")
	}

	logger.WithContext(ctx, logger.Logger).Error("Panic recovered", fields...)

	if cfg.OnPanic != nil {
		cfg.OnPanic(ctx, c, r, stack)
	}

	if cfg.HideDetails {
		response.Error(ctx, c, errors.Internal)
	} else {
		response.ErrorWithDetails(ctx, c, errors.Internal, map[string]interface{}{
			"panic": fmt.Sprintf("%v", r),
		})
	}
	c.Abort()
}
