package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/engine"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

// LLMController 推理接口
type LLMController struct {
	BaseController
}

// QueryRequest 推理请求体，同步和流式共用
type QueryRequest struct {
	Input        string   `json:"input" validate:"required"`
	MaxTokens    int      `json:"max_tokens" validate:"omitempty,gte=1,lte=1024"`
	Temperature  *float32 `json:"temperature" validate:"omitempty,gte=0,lte=1"`
	SystemPrompt string   `json:"system_prompt"`

	// 采样控制参数，不传时用引擎配置默认值
	TopP              *float32 `json:"top_p" validate:"omitempty,gte=0,lte=1"`
	TopK              *int     `json:"top_k" validate:"omitempty,gte=0"`
	RepetitionPenalty *float32 `json:"repetition_penalty" validate:"omitempty,gte=0"`
	Seed              *int     `json:"seed"`

	EchoPrompt  bool                   `json:"echo_prompt"`
	LogToMemory bool                   `json:"log_to_memory"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// fullPrompt 注入system prompt后的完整文本，落库和回显用
func (r *QueryRequest) fullPrompt() string {
	if r.SystemPrompt != "" {
		return r.SystemPrompt + "\n" + r.Input
	}
	return r.Input
}

func (r *QueryRequest) engineOptions() engine.QueryOptions {
	return engine.QueryOptions{
		MaxTokens:         r.MaxTokens,
		Temperature:       r.Temperature,
		TopP:              r.TopP,
		RepetitionPenalty: r.RepetitionPenalty,
		Seed:              r.Seed,
		System:            r.SystemPrompt,
	}
}

// logQuery 按需把prompt写入记忆层，失败不影响请求
func (c *LLMController) logQuery(req *QueryRequest, tag string) {
	if !req.LogToMemory || memoryService == nil {
		return
	}

	user := c.authedUser()
	var userID *uint
	if user != nil {
		userID = &user.ID
	}

	_, _, err := memoryService.LogPrompt(c.Ctx.Request.Context(), services.LogPromptInput{
		Prompt: req.fullPrompt(),
		UserID: userID,
		Tag:    tag,
		Source: "api",
	})
	if err != nil {
		logger.Warn("failed to log prompt", zap.Error(err))
	}
}

func (c *LLMController) sessionError(status int, sessionID, message string) {
	c.JSON(status, map[string]interface{}{
		"session_id": sessionID,
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// Query 同步推理
func (c *LLMController) Query() {
	var req QueryRequest
	if !c.parseBody(&req) {
		return
	}

	sessionID := uuid.New().String()
	if llmEngine == nil || !llmEngine.Ready() {
		c.sessionError(http.StatusServiceUnavailable, sessionID, "engine not ready")
		return
	}

	c.logQuery(&req, "inference")

	result, err := llmEngine.Query(c.Ctx.Request.Context(), req.Input, req.engineOptions())
	if err != nil {
		logger.Error("inference failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.sessionError(http.StatusBadGateway, sessionID, "inference failed")
		return
	}

	data := map[string]interface{}{
		"session_id": sessionID,
		"response":   result.Text,
		"meta": map[string]interface{}{
			"input_tokens":   result.InputTokens,
			"output_tokens":  result.OutputTokens,
			"total_tokens":   result.TotalTokens,
			"inference_time": result.InferenceSeconds,
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
			"model":          result.Model,
			"client_ip":      c.getClientIP(),
			"user_agent":     c.Ctx.Input.UserAgent(),
			"seed":           req.Seed,
		},
	}
	if req.EchoPrompt {
		data["prompt"] = req.fullPrompt()
	}
	if len(req.Metadata) > 0 {
		data["metadata"] = req.Metadata
	}

	c.JSON(http.StatusOK, data)
}

// Stream 流式推理，增量以text/plain分块输出
func (c *LLMController) Stream() {
	var req QueryRequest
	if !c.parseBody(&req) {
		return
	}

	sessionID := uuid.New().String()
	if llmEngine == nil || !llmEngine.Ready() {
		c.sessionError(http.StatusServiceUnavailable, sessionID, "engine not ready")
		return
	}
	if !llmEngine.StreamEnabled() {
		c.sessionError(http.StatusNotImplemented, sessionID, "streaming is disabled")
		return
	}

	c.logQuery(&req, "inference_stream")

	chunks, err := llmEngine.QueryStream(c.Ctx.Request.Context(), req.Input, req.engineOptions())
	if err != nil {
		logger.Error("stream init failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.sessionError(http.StatusBadGateway, sessionID, "stream init failed")
		return
	}

	w := c.Ctx.ResponseWriter
	header := w.Header()
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Session-ID", sessionID)
	header.Set("X-Timestamp", time.Now().UTC().Format(time.RFC3339))
	w.WriteHeader(http.StatusOK)

	for chunk := range chunks {
		if chunk.Err != nil {
			logger.Error("stream read failed",
				zap.String("session_id", sessionID),
				zap.Error(chunk.Err))
			return
		}
		if chunk.Done {
			break
		}
		if _, err := fmt.Fprint(w, chunk.Content); err != nil {
			return
		}
		w.Flush()
	}
}
