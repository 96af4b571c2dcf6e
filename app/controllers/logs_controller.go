package controllers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

// LogsController 提示词日志和统计接口
type LogsController struct {
	BaseController
}

// parseTimeParam 解析RFC3339时间参数，非法时立即400
func (c *LogsController) parseTimeParam(name string) (*time.Time, bool) {
	raw := c.GetString(name)
	if raw == "" {
		return nil, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSONError(http.StatusBadRequest, name+" must be an RFC3339 timestamp")
		return nil, false
	}
	return &ts, true
}

// List 日志列表，format=ndjson时按行输出
func (c *LogsController) List() {
	limit, _ := strconv.Atoi(c.GetString("limit", "50"))
	offset, _ := strconv.Atoi(c.GetString("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	filter := services.RecentFilter{
		Limit:  limit,
		Offset: offset,
		Tag:    c.GetString("tag"),
		Source: c.GetString("source"),
	}
	if raw := c.GetString("user_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			uid := uint(id)
			filter.UserID = &uid
		}
	}

	var ok bool
	if filter.Since, ok = c.parseTimeParam("start_time"); !ok {
		return
	}
	if filter.Until, ok = c.parseTimeParam("end_time"); !ok {
		return
	}

	entries, total, err := memoryService.RecentPrompts(filter)
	if err != nil {
		logger.Error("failed to list prompt logs", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to list logs")
		return
	}

	if c.GetString("format") == "ndjson" {
		c.Ctx.Output.Header("Content-Type", "application/x-ndjson")
		c.Ctx.Output.Body([]byte(services.ExportNDJSON(entries)))
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"logs":   entries,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Stats 日志汇总统计
func (c *LogsController) Stats() {
	stats, err := memoryService.Stats()
	if err != nil {
		logger.Error("failed to compute log stats", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to compute stats")
		return
	}
	c.JSONSuccess(stats)
}

// Common 高频prompt排行
func (c *LogsController) Common() {
	limit, _ := strconv.Atoi(c.GetString("limit", "20"))
	minLength, _ := strconv.Atoi(c.GetString("min_length", "5"))
	sinceDays, _ := strconv.Atoi(c.GetString("since_days", "0"))

	filter := services.CommonPromptsFilter{
		Limit:           limit,
		MinLength:       minLength,
		SinceDays:       sinceDays,
		Tag:             c.GetString("tag"),
		CaseInsensitive: c.GetString("case_insensitive") == "true",
	}
	if raw := c.GetString("user_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			uid := uint(id)
			filter.UserID = &uid
		}
	}

	prompts, err := analyticsService.MostCommonPrompts(filter)
	if err != nil {
		logger.Error("failed to query common prompts", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to query common prompts")
		return
	}
	c.JSONSuccess(map[string]interface{}{"prompts": prompts})
}

// Trend 日级活跃度时间序列
func (c *LogsController) Trend() {
	days, _ := strconv.Atoi(c.GetString("days", "7"))

	var userID *uint
	if raw := c.GetString("user_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			uid := uint(id)
			userID = &uid
		}
	}

	trend, err := analyticsService.PromptTrend(days, c.GetString("tag"), userID, c.GetString("case_insensitive") == "true")
	if err != nil {
		logger.Error("failed to build prompt trend", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to build trend")
		return
	}
	c.JSONSuccess(map[string]interface{}{"trend": trend})
}

// Tech 最近日志的技术内容分类统计
func (c *LogsController) Tech() {
	limit, _ := strconv.Atoi(c.GetString("limit", "500"))

	breakdown, err := analyticsService.TechSummary(limit, c.GetString("tag"))
	if err != nil {
		logger.Error("failed to build tech summary", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to build tech summary")
		return
	}
	c.JSONSuccess(breakdown)
}

// Purge 清理日志，管理员接口
// before_hours限定只删早于N小时的数据，缺省清空全部
func (c *LogsController) Purge() {
	var removed int64
	var err error

	if raw := c.GetString("before_hours"); raw != "" {
		hours, convErr := strconv.Atoi(raw)
		if convErr != nil || hours <= 0 {
			c.JSONError(http.StatusBadRequest, "before_hours must be a positive integer")
			return
		}
		removed, err = memoryService.PurgeBefore(time.Now().Add(-time.Duration(hours) * time.Hour))
	} else {
		removed, err = memoryService.PurgeAll()
	}

	if err != nil {
		logger.Error("failed to purge prompt logs", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "failed to purge logs")
		return
	}
	c.JSONSuccess(map[string]interface{}{"removed": removed})
}
