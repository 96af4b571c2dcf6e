package controllers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/logger"
)

// SettingController 运行时配置接口
type SettingController struct {
	BaseController
}

// SettingRequest 配置写入请求体
type SettingRequest struct {
	Key   string `json:"key" validate:"required,max=100"`
	Value string `json:"value" validate:"required"`
}

// List 返回全部配置项
func (c *SettingController) List() {
	settings, err := settingService.All()
	if err != nil {
		logger.Error("failed to list settings", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to list settings")
		return
	}
	c.JSONSuccess(map[string]interface{}{"settings": settings})
}

// Set 写入单个配置项，管理员接口
func (c *SettingController) Set() {
	var req SettingRequest
	if !c.parseBody(&req) {
		return
	}

	if err := settingService.Set(c.Ctx.Request.Context(), req.Key, req.Value); err != nil {
		logger.Error("failed to save setting",
			zap.String("key", req.Key),
			zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to save setting")
		return
	}
	c.JSONSuccess(map[string]interface{}{"key": req.Key, "value": req.Value})
}
