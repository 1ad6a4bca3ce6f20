package handler

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/response"
	"StaffOps/utils"
)

// ListWorkers 在职员工
// GET /v1/admin/workers
func (h *Handler) ListWorkers(ctx context.Context, c *app.RequestContext) {
	workers, err := h.workers.ListActive(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, workers)
}

// UpsertWorker 同步员工档案
// PUT /v1/admin/workers/:worker_id
func (h *Handler) UpsertWorker(ctx context.Context, c *app.RequestContext) {
	workerID := strings.TrimSpace(c.Param("worker_id"))
	if workerID == "" {
		response.Error(ctx, c, errors.InvalidUserID)
		return
	}

	var req dto.UpsertWorkerRequest
	if !bind(ctx, c, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("name is required"))
		return
	}
	for _, hhmm := range []string{req.WorkStart, req.WorkEnd} {
		if _, err := utils.ParseClock(hhmm); hhmm != "" && err != nil {
			response.Error(ctx, c, errors.InvalidRequest.WithMessage("working hours must be HH:MM"))
			return
		}
	}

	role := model.WorkerRole(req.Role)
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("role must be user or admin"))
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	profile := &model.WorkerProfile{
		WorkerID:   workerID,
		Name:       req.Name,
		Email:      req.Email,
		JobTitle:   req.JobTitle,
		Department: req.Department,
		Skills:     req.Skills,
		WorkStart:  req.WorkStart,
		WorkEnd:    req.WorkEnd,
		Active:     active,
		Verified:   req.Verified,
		Role:       role,
	}
	if err := h.workers.Upsert(ctx, profile); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, profile)
}
