package controllers

import (
	"net/http"
	"time"
)

// RootController 服务入口和健康检查
type RootController struct {
	BaseController
}

// Index 服务标识
func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"service":   "brainz-os",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Health 健康检查：数据库和引擎状态
func (c *RootController) Health() {
	dbHealthy := true
	var dbDetail interface{}
	if healthChecker != nil {
		result := healthChecker.GetHealthResult()
		dbHealthy = result.Healthy
		dbDetail = result
	}

	status := http.StatusOK
	overall := "healthy"
	if !dbHealthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	payload := map[string]interface{}{
		"status":    overall,
		"database":  dbDetail,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if llmEngine != nil {
		payload["engine"] = llmEngine.Status()
	}
	c.JSON(status, payload)
}
