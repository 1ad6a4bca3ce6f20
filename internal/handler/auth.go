package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"StaffOps/internal/model/dto"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/logger"
	"StaffOps/pkg/response"
	"StaffOps/pkg/token"
)

// IssueToken 管理员为员工签发令牌；登录与身份核验由外部系统完成
// POST /v1/admin/workers/:worker_id/token
func (h *Handler) IssueToken(ctx context.Context, c *app.RequestContext) {
	profile, err := h.workers.GetProfile(ctx, c.Param("worker_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if !profile.Active {
		response.Error(ctx, c, errors.Forbidden.WithMessage("worker is not active"))
		return
	}

	h.issue(ctx, c, profile.WorkerID, string(profile.Role))
}

// RefreshToken 用 refresh token 换新的一组令牌，旧 refresh token 随即失效
// POST /v1/auth/token/refresh
func (h *Handler) RefreshToken(ctx context.Context, c *app.RequestContext) {
	var req dto.RefreshTokenRequest
	if !bind(ctx, c, &req) {
		return
	}

	workerID, err := token.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		response.Error(ctx, c, errors.InvalidToken)
		return
	}

	ok, err := h.tokens.Matches(ctx, workerID, req.RefreshToken)
	if err != nil {
		logger.Logger.Error("Failed to load refresh token", zap.String("worker_id", workerID), zap.Error(err))
		response.Error(ctx, c, err)
		return
	}
	if !ok {
		response.Error(ctx, c, errors.InvalidToken)
		return
	}

	// 角色以档案为准，降级或离职立即生效
	profile, err := h.workers.GetProfile(ctx, workerID)
	if err != nil || !profile.Active {
		_ = h.tokens.Delete(ctx, workerID)
		response.Error(ctx, c, errors.InvalidToken)
		return
	}

	h.issue(ctx, c, workerID, string(profile.Role))
}

func (h *Handler) issue(ctx context.Context, c *app.RequestContext, workerID, role string) {
	pair, err := token.GenerateTokenPair(workerID, role)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if err := h.tokens.Set(ctx, workerID, pair.RefreshToken); err != nil {
		logger.Logger.Error("Failed to store refresh token", zap.String("worker_id", workerID), zap.Error(err))
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, pair)
}
