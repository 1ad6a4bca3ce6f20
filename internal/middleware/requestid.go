package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"

	"StaffOps/pkg/response"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware 透传或生成请求 ID，并回写到响应头
func RequestIDMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		requestID := string(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(RequestIDHeader, requestID)
		}
		c.Set(response.RequestIDKey, requestID)
		c.Response.Header.Set(RequestIDHeader, requestID)

		c.Next(ctx)
	}
}
