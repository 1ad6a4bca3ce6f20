package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"StaffOps/pkg/errors"
)

// RequestIDKey 与 RequestIDMiddleware 写入的 key 一致
const RequestIDKey = "request_id"

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

var statusByKind = map[errors.Kind]int{
	errors.KindValidation:   http.StatusBadRequest,
	errors.KindUnauthorized: http.StatusUnauthorized,
	errors.KindForbidden:    http.StatusForbidden,
	errors.KindNotFound:     http.StatusNotFound,
	errors.KindConflict:     http.StatusConflict,
	// 状态机拒绝与无候选人都是“请求合法但当前无法执行”
	errors.KindInvalidState: http.StatusUnprocessableEntity,
	errors.KindNoCandidates: http.StatusUnprocessableEntity,
	errors.KindRateLimited:  http.StatusTooManyRequests,
	errors.KindExternal:     http.StatusBadGateway,
	errors.KindUnavailable:  http.StatusServiceUnavailable,
}

// StatusFor 未登记的错误一律 500
func StatusFor(err error) int {
	def, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if status, ok := statusByKind[def.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error 未登记的错误不向调用方暴露原始信息
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	def, ok := errors.As(err)
	if !ok {
		def = errors.Internal
	}
	writeError(c, StatusFor(err), def.Code, def.Message, details)
}

// BindError 参数绑定或校验失败，message 保留校验器原文
func BindError(ctx context.Context, c *app.RequestContext, err error) {
	writeError(c, http.StatusBadRequest, errors.InvalidRequest.Code, err.Error(), nil)
}

func writeError(c *app.RequestContext, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: c.GetString(RequestIDKey),
	}})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data})
}

func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Data: data})
}

// SuccessWithMeta 分页等附加信息放 meta
func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Data: data, Meta: meta})
}
