package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"StaffOps/config"
	"StaffOps/internal/cache"
	"StaffOps/internal/queue"
	"StaffOps/pkg/logger"
	otelinit "StaffOps/pkg/otel"
	"StaffOps/pkg/snowflake"
	"StaffOps/storage"
	"StaffOps/storage/redis"
)

func main() {
	config.MustLoad()

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	cfg := config.Cfg

	if cfg.OTelEnabled {
		providers, err := otelinit.Init(ctx, otelinit.FromConfig(&cfg, "worker"))
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry for worker", zap.Error(err))
		}
		defer func() { _ = providers.Shutdown(context.Background()) }()

		if err := storage.InitMetrics(otel.Meter(cfg.ServiceName)); err != nil {
			logger.Logger.Warn("Failed to initialize storage metrics", zap.Error(err))
		}
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	handler := queue.NewEventHandler(
		cache.NewMessageMarker(redis.Client()),
		queue.LogMailer{Logger: logger.Named("mailer")},
		logger.Named("consumer"),
	)

	logger.Logger.Info("Worker service starting",
		zap.String("service", cfg.ServiceName+"-worker"),
		zap.String("environment", cfg.Environment),
	)

	if err := queue.StartEventConsumer(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		logger.Logger.Error("Workforce event consumer stopped", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
