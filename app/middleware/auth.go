package middleware

import (
	"errors"
	"net/http"

	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/auth"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

var (
	userService *services.UserService
	jwtService  *auth.JWTService
)

// Setup 注入鉴权中间件的依赖，启动时调用一次
func Setup(users *services.UserService, jwt *auth.JWTService) {
	userService = users
	jwtService = jwt
}

func denyJSON(ctx *context.Context, status int, message string) {
	ctx.Output.SetStatus(status)
	ctx.Output.JSON(map[string]interface{}{
		"success": false,
		"error":   message,
	}, false, false)
}

// APIKeyAuth API Key鉴权过滤器
// 校验X-API-Key头，通过后把用户写入请求上下文并记一次访问
func APIKeyAuth(ctx *context.Context) {
	apiKey := ctx.Input.Header("X-API-Key")
	if apiKey == "" {
		denyJSON(ctx, http.StatusUnauthorized, "missing X-API-Key header")
		return
	}
	if userService == nil {
		denyJSON(ctx, http.StatusServiceUnavailable, "auth not initialized")
		return
	}

	user, err := userService.ValidateAPIKey(apiKey)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		denyJSON(ctx, http.StatusUnauthorized, "invalid api key")
		return
	case errors.Is(err, services.ErrUserInactive):
		denyJSON(ctx, http.StatusForbidden, "user is inactive")
		return
	case err != nil:
		logger.Error("api key validation failed", zap.Error(err))
		denyJSON(ctx, http.StatusInternalServerError, "auth failed")
		return
	}

	if err := userService.TouchAccess(user.ID); err != nil {
		logger.Warn("failed to record access", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	ctx.Input.SetData("auth_user", user)
}

// AdminJWTAuth 管理员JWT鉴权过滤器，管理接口用
func AdminJWTAuth(ctx *context.Context) {
	if jwtService == nil {
		denyJSON(ctx, http.StatusServiceUnavailable, "auth not initialized")
		return
	}

	token, err := auth.ExtractTokenFromHeader(ctx.Input.Header("Authorization"))
	if err != nil {
		denyJSON(ctx, http.StatusUnauthorized, "missing or malformed bearer token")
		return
	}

	claims, err := jwtService.ValidateToken(token)
	if err != nil {
		denyJSON(ctx, http.StatusUnauthorized, "invalid token")
		return
	}
	if !claims.IsAdmin {
		denyJSON(ctx, http.StatusForbidden, "admin privileges required")
		return
	}

	ctx.Input.SetData("admin_claims", claims)
}
