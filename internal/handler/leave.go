package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"StaffOps/internal/model/dto"
	"StaffOps/pkg/response"
)

// ApplyLeave 申请请假
// POST /v1/leaves
func (h *Handler) ApplyLeave(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.ApplyLeaveRequest
	if !bind(ctx, c, &req) {
		return
	}

	rec, err := h.leave.Apply(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, rec)
}

// PendingLeaves 待审批请假
// GET /v1/admin/leaves/pending
func (h *Handler) PendingLeaves(ctx context.Context, c *app.RequestContext) {
	data, err := h.leave.Pending(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

// DecideLeave 审批请假
// POST /v1/admin/leaves/:attendance_id/decision
func (h *Handler) DecideLeave(ctx context.Context, c *app.RequestContext) {
	actorID, ok := currentUser(ctx, c)
	if !ok {
		return
	}
	id, ok := pathID(ctx, c, "attendance_id")
	if !ok {
		return
	}

	var req dto.DecideLeaveRequest
	if !bind(ctx, c, &req) {
		return
	}

	decision, err := h.leave.Decide(ctx, actorID, id, req.Approve, req.Notes)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, decision)
}
