package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"StaffOps/internal/model"
	"StaffOps/pkg/errors"
	"StaffOps/pkg/response"
	"StaffOps/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
	RoleKey     = token.RoleKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

func initAuthMiddleware() error {
	// 与 token 包共用密钥与过期配置
	sharedGenerator := token.GetGenerator()
	if sharedGenerator == nil {
		return fmt.Errorf("token generator not initialized, call token.Init() first")
	}

	authMiddleware = &jwt.HertzJWTMiddleware{
		Realm:       "StaffOps API",
		Key:         sharedGenerator.Key,
		Timeout:     sharedGenerator.Timeout,
		MaxRefresh:  sharedGenerator.MaxRefresh,
		IdentityKey: sharedGenerator.IdentityKey,
		TimeFunc:    sharedGenerator.TimeFunc,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			// refresh token 只能用于换发，不能访问业务接口
			if typ, _ := claims[token.TypeKey].(string); typ != token.TypeAccess {
				return nil
			}
			uid, ok := claims[IdentityKey].(string)
			if !ok || uid == "" {
				return nil
			}
			if role, ok := claims[RoleKey].(string); ok {
				c.Set(RoleKey, role)
			}
			return uid
		},

		Authorizator: func(identity interface{}, ctx context.Context, c *app.RequestContext) bool {
			return identity != nil
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			response.Error(ctx, c, errors.Unauthorized.WithMessage(message))
		},

		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
	}

	return authMiddleware.MiddlewareInit()
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// AdminOnly 必须挂在 AuthMiddleware 之后
func AdminOnly() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if !IsAdmin(ctx, c) {
			response.Error(ctx, c, errors.Forbidden)
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// GetUserID 从请求上下文中获取 worker_id
func GetUserID(ctx context.Context, c *app.RequestContext) (string, bool) {
	userID, exists := c.Get(IdentityKey)
	if !exists {
		return "", false
	}

	id, ok := userID.(string)
	if !ok {
		return "", false
	}

	return id, true
}

func IsAdmin(ctx context.Context, c *app.RequestContext) bool {
	return c.GetString(RoleKey) == string(model.RoleAdmin)
}
