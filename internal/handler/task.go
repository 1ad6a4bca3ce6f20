package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"StaffOps/internal/middleware"
	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/response"
)

// MyTasks 当前员工某天的任务，默认当天
// GET /v1/tasks/mine?date=2024-06-01
func (h *Handler) MyTasks(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	tasks, err := h.tasks.ListForWorker(ctx, userID, c.Query("date"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, tasks)
}

// GetTask 任务详情，含改派历史
// GET /v1/tasks/:task_id
func (h *Handler) GetTask(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "task_id")
	if !ok {
		return
	}

	task, err := h.tasks.Get(ctx, id)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if task.AssignedTo != userID && !middleware.IsAdmin(ctx, c) {
		response.Error(ctx, c, errors.Forbidden)
		return
	}

	response.Success(ctx, c, task)
}

// UpdateTaskStatus 指派人或管理员推进任务状态
// PATCH /v1/tasks/:task_id/status
func (h *Handler) UpdateTaskStatus(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "task_id")
	if !ok {
		return
	}

	var req dto.UpdateTaskStatusRequest
	if !bind(ctx, c, &req) {
		return
	}

	task, err := h.tasks.UpdateStatus(ctx, userID, middleware.IsAdmin(ctx, c), id, model.TaskStatus(req.Status), req.Notes)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, task)
}

// CreateTask 创建任务，指派人不可用时自动改派
// POST /v1/admin/tasks
func (h *Handler) CreateTask(ctx context.Context, c *app.RequestContext) {
	actorID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if !bind(ctx, c, &req) {
		return
	}

	result, err := h.tasks.Create(ctx, actorID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, result)
}

// BulkCreateTasks 批量创建，逐条返回结果
// POST /v1/admin/tasks/bulk
func (h *Handler) BulkCreateTasks(ctx context.Context, c *app.RequestContext) {
	actorID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.BulkCreateTaskRequest
	if !bind(ctx, c, &req) {
		return
	}

	result, err := h.tasks.BulkCreate(ctx, actorID, req.Tasks)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// TaskSummary 当天任务汇总
// GET /v1/admin/tasks/summary?date=2024-06-01
func (h *Handler) TaskSummary(ctx context.Context, c *app.RequestContext) {
	sum, err := h.tasks.DaySummary(ctx, c.Query("date"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, sum)
}

// Candidates 改派候选人
// GET /v1/admin/tasks/candidates?category=cleaning&date=2024-06-01&exclude=w-1
func (h *Handler) Candidates(ctx context.Context, c *app.RequestContext) {
	category, date := c.Query("category"), c.Query("date")
	if category == "" || date == "" {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("category and date are required"))
		return
	}

	candidates, err := h.engine.FindCandidates(ctx, category, date, c.Query("exclude"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, candidates)
}

// AutoReassign 按可用性与负载自动改派
// POST /v1/admin/tasks/:task_id/auto-reassign
func (h *Handler) AutoReassign(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(ctx, c, "task_id")
	if !ok {
		return
	}

	reason := model.ReassignmentReason(c.DefaultQuery("reason", string(model.ReasonUserAbsent)))
	if !reason.Valid() {
		response.Error(ctx, c, errors.InvalidRequest.WithMessage("invalid reassignment reason"))
		return
	}

	task, err := h.engine.AutoReassign(ctx, id, reason)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, task)
}

// ManualReassign 管理员指定接手人
// POST /v1/admin/tasks/:task_id/reassign
func (h *Handler) ManualReassign(ctx context.Context, c *app.RequestContext) {
	id, ok := pathID(ctx, c, "task_id")
	if !ok {
		return
	}

	var req dto.ReassignTaskRequest
	if !bind(ctx, c, &req) {
		return
	}
	if req.WorkerID == "" {
		response.Error(ctx, c, errors.InvalidUserID)
		return
	}

	task, err := h.engine.ManualReassign(ctx, id, req.WorkerID, model.ReasonManualOverride)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, task)
}

// RunTaskSweep 手动触发当天改派扫描
// POST /v1/admin/tasks/sweep?date=2024-06-01
func (h *Handler) RunTaskSweep(ctx context.Context, c *app.RequestContext) {
	date := c.Query("date")
	if date == "" {
		date = h.attendance.Today()
	}

	result, err := h.engine.SweepDate(ctx, date)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
