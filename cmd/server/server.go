package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"StaffOps/config"
	"StaffOps/internal/cache"
	"StaffOps/internal/handler"
	"StaffOps/internal/middleware"
	"StaffOps/internal/queue"
	"StaffOps/internal/repository"
	"StaffOps/internal/router"
	"StaffOps/internal/service"
	"StaffOps/pkg/clock"
	"StaffOps/pkg/logger"
	"StaffOps/pkg/metrics"
	otelinit "StaffOps/pkg/otel"
	"StaffOps/pkg/snowflake"
	"StaffOps/pkg/token"
	"StaffOps/storage"
	"StaffOps/storage/database"
	"StaffOps/storage/redis"
)

func main() {
	config.MustLoad()

	// 日志部分
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

	var serverOpts []hertzconfig.Option
	opts := router.Options{CORSAllowedOrigins: cfg.CORSAllowedOrigins}
	if cfg.OTelEnabled {
		providers, err := otelinit.Init(ctx, otelinit.FromConfig(&cfg, "api"))
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
			}
		}()

		meter := otel.Meter(cfg.ServiceName)
		if err := storage.InitMetrics(meter); err != nil {
			logger.Logger.Warn("Failed to initialize storage metrics", zap.Error(err))
		}
		if err := metrics.InitMetrics(); err != nil {
			logger.Logger.Warn("Failed to initialize business metrics", zap.Error(err))
		}

		if cfg.OTelHertzTracer {
			tracerOpt, tracingMw := middleware.NewServerTracerConfig()
			serverOpts = append(serverOpts, tracerOpt)
			opts.Tracing = tracingMw
		} else {
			if err := middleware.InitMetrics(meter); err != nil {
				logger.Logger.Warn("Failed to initialize HTTP metrics", zap.Error(err))
			}
			opts.EnableOTelMiddleware = true
		}
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	} // token 在中间件前初始化，middleware 依赖 token

	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	// 业务依赖
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
	load := service.NewWorkload(taskRepo)
	engine := service.NewEngine(taskRepo, workerRepo, avail, load, notifier, clk, policy, log)

	hd := handler.New(handler.Deps{
		Attendance: service.NewAttendanceService(attendanceRepo, workerRepo, clk, policy, log),
		Leave:      service.NewLeaveService(attendanceRepo, workerRepo, notifier, clk, policy, log),
		Tasks:      service.NewTaskService(taskRepo, workerRepo, avail, load, engine, clk, policy, log),
		Engine:     engine,
		Workers:    workerRepo,
		Tokens:     cache.NewRefreshTokens(redis.Client(), time.Duration(cfg.JWTRefreshDays)*24*time.Hour),
	})

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("port", cfg.ServerPort),
		zap.String("environment", cfg.Environment),
	)

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	h := server.Default(append(serverOpts, server.WithHostPorts(addr))...)

	if cfg.RateLimitEnabled {
		opts.RateLimitRedis = redis.Client()
		opts.RateLimitRPS = cfg.RateLimitRPS
	}
	opts.ReadinessChecks = map[string]func(context.Context) error{
		"database": database.Ping,
		"redis":    redis.Ping,
	}
	router.Register(h, hd, opts)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
