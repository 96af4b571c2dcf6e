package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

// UserController 用户和API Key管理
type UserController struct {
	BaseController
}

// CreateUserRequest 注册请求体
type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
}

// Create 注册新用户，返回发放的API Key
func (c *UserController) Create() {
	var req CreateUserRequest
	if !c.parseBody(&req) {
		return
	}

	user, err := userService.CreateUser(req.Username)
	switch {
	case errors.Is(err, services.ErrInvalidUsername), errors.Is(err, services.ErrReservedUsername):
		c.JSONError(http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, services.ErrUserExists):
		c.JSONError(http.StatusConflict, "username already exists")
		return
	case err != nil:
		logger.Error("failed to create user", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to create user")
		return
	}

	c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"api_key":  user.ApiKey,
		},
	})
}

// Active 启用状态的用户列表，不返回API Key
func (c *UserController) Active() {
	limit, _ := strconv.Atoi(c.GetString("limit", "50"))

	users, err := userService.ActiveUsers(limit)
	if err != nil {
		logger.Error("failed to list users", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to list users")
		return
	}

	out := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		entry := map[string]interface{}{
			"id":          u.ID,
			"username":    u.Username,
			"usage_count": u.UsageCount,
			"created_at":  u.CreatedAt,
		}
		if u.LastAccessed != nil {
			entry["last_accessed"] = u.LastAccessed
		}
		out = append(out, entry)
	}
	c.JSONSuccess(map[string]interface{}{"users": out, "total": len(out)})
}

// RegenerateRequest 换发API Key请求体
type RegenerateRequest struct {
	Username string `json:"username" validate:"required"`
}

// Regenerate 给当前用户换发API Key，旧key立即失效
// 只允许操作自己的账号
func (c *UserController) Regenerate() {
	var req RegenerateRequest
	if !c.parseBody(&req) {
		return
	}

	caller := c.authedUser()
	if caller == nil || caller.Username != req.Username {
		c.JSONError(http.StatusForbidden, "can only regenerate your own key")
		return
	}

	user, err := userService.RegenerateKey(req.Username)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSONError(http.StatusNotFound, "user not found")
		return
	case errors.Is(err, services.ErrUserInactive):
		c.JSONError(http.StatusForbidden, "user is inactive")
		return
	case err != nil:
		logger.Error("failed to regenerate api key", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to regenerate key")
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"username": user.Username,
		"api_key":  user.ApiKey,
	})
}
