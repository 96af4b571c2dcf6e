package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"

	"github.com/brainzmonster/os/internal/models"
)

var validate = validator.New()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// parseBody 解析并校验JSON请求体
func (c *BaseController) parseBody(dst interface{}) bool {
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, dst); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		c.JSONError(http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// authedUser 取鉴权中间件写入的用户，公开接口返回nil
func (c *BaseController) authedUser() *models.User {
	if v := c.Ctx.Input.GetData("auth_user"); v != nil {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// getClientIP 获取客户端真实IP地址
func (c *BaseController) getClientIP() string {
	// X-Forwarded-For可能包含多个IP，取第一个
	if xff := c.Ctx.Input.Header("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if realIP := c.Ctx.Input.Header("X-Real-IP"); realIP != "" {
		return realIP
	}
	return c.Ctx.Input.IP()
}
