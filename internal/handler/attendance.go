package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"StaffOps/internal/model"
	"StaffOps/internal/model/dto"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/response"
)

// CheckIn 上班打卡
// POST /v1/attendance/check-in
func (h *Handler) CheckIn(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CheckInRequest
	if len(c.Request.Body()) > 0 && !bind(ctx, c, &req) {
		return
	}

	rec, err := h.attendance.CheckIn(ctx, userID, req.Location)
	if err != nil {
		// 迟到过久：拒绝打卡，但记录已写成缺勤，一并返回
		if def, isDef := errors.As(err); isDef && def.Code == errors.ExcessiveDelay.Code && rec != nil {
			response.ErrorWithDetails(ctx, c, err, map[string]interface{}{"record": rec})
			return
		}
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, rec)
}

// CheckOut 下班打卡
// POST /v1/attendance/check-out
func (h *Handler) CheckOut(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CheckOutRequest
	if len(c.Request.Body()) > 0 && !bind(ctx, c, &req) {
		return
	}

	rec, err := h.attendance.CheckOut(ctx, userID, req.Location, req.Notes)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, rec)
}

// GetToday 当天考勤状态
// GET /v1/attendance/today
func (h *Handler) GetToday(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	data, err := h.attendance.TodayStatus(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

// GetHistory 考勤历史
// GET /v1/attendance/history?month=2024-06&page=1&limit=10
func (h *Handler) GetHistory(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var q dto.HistoryQuery
	if !bind(ctx, c, &q) {
		return
	}

	page, err := h.attendance.History(ctx, userID, q)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.SuccessWithMeta(ctx, c, page.Records, map[string]interface{}{
		"page":  page.Page,
		"limit": page.Limit,
		"total": page.Total,
	})
}

// MarkAbsent 管理员标记缺勤
// POST /v1/admin/attendance/absent
func (h *Handler) MarkAbsent(ctx context.Context, c *app.RequestContext) {
	actorID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.MarkAbsentRequest
	if !bind(ctx, c, &req) {
		return
	}
	if req.WorkerID == "" {
		response.Error(ctx, c, errors.InvalidUserID)
		return
	}

	rec, err := h.attendance.MarkAbsent(ctx, actorID, req.WorkerID, req.Date, req.Reason)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, rec)
}

// ChangeStatus 管理员修正当天考勤状态
// PUT /v1/admin/attendance/status
func (h *Handler) ChangeStatus(ctx context.Context, c *app.RequestContext) {
	actorID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.ChangeStatusRequest
	if !bind(ctx, c, &req) {
		return
	}
	if req.WorkerID == "" {
		response.Error(ctx, c, errors.InvalidUserID)
		return
	}

	rec, err := h.attendance.ChangeStatus(ctx, actorID, req.WorkerID, req.Date, model.AttendanceStatus(req.Status), req.Reason)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, rec)
}

// DailySummary 当天考勤汇总
// GET /v1/admin/attendance/summary?date=2024-06-01
func (h *Handler) DailySummary(ctx context.Context, c *app.RequestContext) {
	sum, err := h.attendance.DailySummary(ctx, c.Query("date"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, sum)
}

// RunAttendanceSweep 手动触发缺勤扫描
// POST /v1/admin/attendance/sweep?date=2024-06-01
func (h *Handler) RunAttendanceSweep(ctx context.Context, c *app.RequestContext) {
	date := c.Query("date")
	if date == "" {
		date = h.attendance.Today()
	}

	result, err := h.attendance.AutoSweep(ctx, date)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
