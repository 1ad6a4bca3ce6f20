package router

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	goredis "github.com/redis/go-redis/v9"

	"StaffOps/internal/handler"
	"StaffOps/internal/middleware"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/response"
)

type Options struct {
	// 为空时不启用限流
	RateLimitRedis goredis.Cmdable
	RateLimitRPS   int
	// 追踪由 hertz tracer 中间件负责时关闭
	EnableOTelMiddleware bool
	// hertz obs-opentelemetry 的服务端中间件，需与 server.WithTracer 配套
	Tracing app.HandlerFunc
	CORSAllowedOrigins []string
	// /readyz 依次执行，任一失败返回 503
	ReadinessChecks map[string]func(ctx context.Context) error
}

func Register(h *server.Hertz, hd *handler.Handler, opts Options) {
	if opts.Tracing != nil {
		h.Use(opts.Tracing)
	}
	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.RequestIDMiddleware())
	h.Use(middleware.CORSMiddleware(opts.CORSAllowedOrigins))
	if opts.EnableOTelMiddleware {
		h.Use(middleware.OpenTelemetryMiddleware())
	}

	h.GET("/healthz", func(ctx context.Context, c *app.RequestContext) {
		response.Success(ctx, c, map[string]string{"status": "ok"})
	})
	h.GET("/readyz", readiness(opts.ReadinessChecks))

	limited := func() []app.HandlerFunc {
		if opts.RateLimitRedis == nil {
			return nil
		}
		return []app.HandlerFunc{middleware.RateLimitMiddleware(opts.RateLimitRedis, middleware.DefaultRateLimitConfig(opts.RateLimitRPS))}
	}

	v1 := h.Group("/v1")

	auth := v1.Group("/auth")
	if opts.RateLimitRedis != nil {
		auth.Use(middleware.RateLimitMiddleware(opts.RateLimitRedis, middleware.AuthRateLimitConfig))
	}
	{
		auth.POST("/token/refresh", hd.RefreshToken)
	}

	// 员工自助
	attendance := v1.Group("/attendance", middleware.AuthMiddleware())
	attendance.Use(limited()...)
	{
		attendance.POST("/check-in", hd.CheckIn)
		attendance.POST("/check-out", hd.CheckOut)
		attendance.GET("/today", hd.GetToday)
		attendance.GET("/history", hd.GetHistory)
	}

	leaves := v1.Group("/leaves", middleware.AuthMiddleware())
	leaves.Use(limited()...)
	{
		leaves.POST("", hd.ApplyLeave)
	}

	tasks := v1.Group("/tasks", middleware.AuthMiddleware())
	tasks.Use(limited()...)
	{
		tasks.GET("/mine", hd.MyTasks)
		tasks.GET("/:task_id", hd.GetTask)
		tasks.PATCH("/:task_id/status", hd.UpdateTaskStatus)
	}

	// 管理员
	admin := v1.Group("/admin", middleware.AuthMiddleware(), middleware.AdminOnly())
	admin.Use(limited()...)
	{
		admin.GET("/workers", hd.ListWorkers)
		admin.PUT("/workers/:worker_id", hd.UpsertWorker)
		admin.POST("/workers/:worker_id/token", hd.IssueToken)

		admin.POST("/attendance/absent", hd.MarkAbsent)
		admin.PUT("/attendance/status", hd.ChangeStatus)
		admin.GET("/attendance/summary", hd.DailySummary)
		admin.POST("/attendance/sweep", hd.RunAttendanceSweep)

		admin.GET("/leaves/pending", hd.PendingLeaves)
		admin.POST("/leaves/:attendance_id/decision", hd.DecideLeave)

		admin.GET("/tasks", hd.ListTasks)
		admin.POST("/tasks", hd.CreateTask)
		admin.POST("/tasks/bulk", hd.BulkCreateTasks)
		admin.GET("/tasks/summary", hd.TaskSummary)
		admin.GET("/tasks/candidates", hd.Candidates)
		admin.POST("/tasks/sweep", hd.RunTaskSweep)
		admin.POST("/tasks/:task_id/auto-reassign", hd.AutoReassign)
		admin.POST("/tasks/:task_id/reassign", hd.ManualReassign)
		admin.PATCH("/tasks/:task_id", hd.UpdateTask)
		admin.DELETE("/tasks/:task_id", hd.DeleteTask)
		admin.PUT("/tasks/:task_id/rating", hd.RateTask)
	}
}

func readiness(checks map[string]func(ctx context.Context) error) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		failed := map[string]interface{}{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			response.ErrorWithDetails(ctx, c, errors.ServiceUnavailable, failed)
			return
		}
		response.Success(ctx, c, map[string]string{"status": "ready"})
	}
}
