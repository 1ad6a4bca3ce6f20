package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"StaffOps/config"
	"StaffOps/internal/cache"
	"StaffOps/internal/queue"
	"StaffOps/internal/repository"
	"StaffOps/internal/schedule"
	"StaffOps/internal/service"
	"StaffOps/pkg/clock"
	"StaffOps/pkg/logger"
	"StaffOps/pkg/metrics"
	otelinit "StaffOps/pkg/otel"
	"StaffOps/pkg/snowflake"
	"StaffOps/storage"
	"StaffOps/storage/database"
	"StaffOps/storage/redis"
)

func main() {
	config.MustLoad()

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	cfg := config.Cfg

	if cfg.OTelEnabled {
		providers, err := otelinit.Init(ctx, otelinit.FromConfig(&cfg, "scheduler"))
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry for scheduler", zap.Error(err))
		}
		defer func() { _ = providers.Shutdown(context.Background()) }()

		if err := storage.InitMetrics(otel.Meter(cfg.ServiceName)); err != nil {
			logger.Logger.Warn("Failed to initialize storage metrics", zap.Error(err))
		}
		if err := metrics.InitMetrics(); err != nil {
			logger.Logger.Warn("Failed to initialize business metrics", zap.Error(err))
		}
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	// 与 server、worker 使用不同的 SNOWFLAKE_MACHINE_ID 部署
	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	db := database.DB()
	attendanceRepo := repository.NewAttendanceRepo(db)
	taskRepo := repository.NewTaskRepo(db)
	workerRepo := repository.NewWorkerRepo(db)

	policy := service.PolicyFromConfig(&cfg)
	clk := clock.System{Loc: cfg.Location()}
	log := logger.Logger

	notifier := queue.NewNotifier(nil, cache.NotifyBreaker, clk, cfg.NotifyTimeout, logger.Named("notifier"))
	defer notifier.Wait()

	avail := service.NewAvailability(attendanceRepo, workerRepo)
	engine := service.NewEngine(taskRepo, workerRepo, avail, service.NewWorkload(taskRepo), notifier, clk, policy, log)
	attendance := service.NewAttendanceService(attendanceRepo, workerRepo, clk, policy, log)

	sweeper := schedule.NewSweepScheduler(attendance, engine, cache.NewLocker(redis.Client()), cfg.SweepLockTTL, logger.Named("sweep"))

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", cfg.ServiceName+"-scheduler"),
		zap.String("environment", cfg.Environment),
		zap.Duration("interval", cfg.SweepInterval),
		zap.Duration("lock_ttl", cfg.SweepLockTTL),
	)

	// 单次扫描的超时与锁 TTL 一致，锁过期前必须结束
	sweeper.Run(ctx, cfg.SweepInterval, cfg.SweepLockTTL)

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
