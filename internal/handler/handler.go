package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"StaffOps/internal/middleware"
	"StaffOps/internal/model"
	"StaffOps/internal/service"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/response"
)

// WorkerAdmin 员工档案读写，*repository.WorkerRepo 实现
type WorkerAdmin interface {
	GetProfile(ctx context.Context, workerID string) (*model.WorkerProfile, error)
	ListActive(ctx context.Context) ([]model.WorkerProfile, error)
	Upsert(ctx context.Context, p *model.WorkerProfile) error
}

// TokenStore refresh token 轮换，*cache.RefreshTokens 实现
type TokenStore interface {
	Set(ctx context.Context, workerID, refreshToken string) error
	Matches(ctx context.Context, workerID, refreshToken string) (bool, error)
	Delete(ctx context.Context, workerID string) error
}

type Deps struct {
	Attendance *service.AttendanceService
	Leave      *service.LeaveService
	Tasks      *service.TaskService
	Engine     *service.Engine
	Workers    WorkerAdmin
	Tokens     TokenStore
}

type Handler struct {
	attendance *service.AttendanceService
	leave      *service.LeaveService
	tasks      *service.TaskService
	engine     *service.Engine
	workers    WorkerAdmin
	tokens     TokenStore
}

func New(d Deps) *Handler {
	return &Handler{
		attendance: d.Attendance,
		leave:      d.Leave,
		tasks:      d.Tasks,
		engine:     d.Engine,
		workers:    d.Workers,
		tokens:     d.Tokens,
	}
}

// currentUser 路由已挂 AuthMiddleware，缺失说明鉴权配置有误
func currentUser(ctx context.Context, c *app.RequestContext) (string, bool) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return "", false
	}
	return userID, true
}

func bind(ctx context.Context, c *app.RequestContext, req interface{}) bool {
	if err := c.BindAndValidate(req); err != nil {
		response.BindError(ctx, c, err)
		return false
	}
	return true
}

func pathID(ctx context.Context, c *app.RequestContext, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("invalid "+name))
		return 0, false
	}
	return id, true
}
