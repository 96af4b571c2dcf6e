package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

// TrainController 训练接口
type TrainController struct {
	BaseController
}

// TrainRequest 训练请求体
// texts和pairs至少提供一个，pairs会被展平成文本
type TrainRequest struct {
	Texts []string                        `json:"texts"`
	Pairs []services.PromptCompletionPair `json:"pairs"`

	DryRun bool     `json:"dry_run"`
	Tags   []string `json:"tags" validate:"omitempty,dive,max=50"`
	Source string   `json:"source" validate:"omitempty,max=50"`

	// 预处理开关，deduplicate缺省为true
	Clean       bool  `json:"clean"`
	Deduplicate *bool `json:"deduplicate"`
	MinLength   int   `json:"min_length" validate:"omitempty,gte=0"`
}

func (r *TrainRequest) allTexts() []string {
	texts := make([]string, 0, len(r.Texts)+len(r.Pairs))
	texts = append(texts, r.Texts...)
	texts = append(texts, services.FlattenPairs(r.Pairs)...)
	return texts
}

func (r *TrainRequest) dedupe() bool {
	if r.Deduplicate == nil {
		return true
	}
	return *r.Deduplicate
}

func (r *TrainRequest) firstTag() string {
	if len(r.Tags) > 0 {
		return r.Tags[0]
	}
	return ""
}

func (r *TrainRequest) sourceOrDefault() string {
	if r.Source == "" {
		return "api"
	}
	return r.Source
}

// Train 提交训练数据
func (c *TrainController) Train() {
	var req TrainRequest
	if !c.parseBody(&req) {
		return
	}

	sessionID := uuid.New().String()
	timestamp := time.Now().UTC().Format(time.RFC3339)

	texts := req.allTexts()
	if len(texts) == 0 {
		c.JSONError(http.StatusBadRequest, "texts or pairs is required")
		return
	}

	result, err := trainingService.Train(c.Ctx.Request.Context(), services.TrainInput{
		Texts:       texts,
		Tag:         req.firstTag(),
		Source:      req.sourceOrDefault(),
		Clean:       req.Clean,
		Deduplicate: req.dedupe(),
		MinLength:   req.MinLength,
		DryRun:      req.DryRun,
	})
	if errors.Is(err, services.ErrNothingToTrain) {
		c.JSONError(http.StatusUnprocessableEntity, "all samples were filtered out by preprocessing")
		return
	}
	if err != nil {
		logger.Error("training failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":      "training failed",
			"session_id": sessionID,
			"timestamp":  timestamp,
		})
		return
	}

	status := "success"
	if result.DryRun {
		status = "simulated"
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"status":          status,
		"trained_samples": result.Trained,
		"dry_run":         result.DryRun,
		"tags":            req.Tags,
		"source":          req.sourceOrDefault(),
		"preprocess":      result.Stats,
		"job_id":          result.JobID,
		"file_id":         result.FileID,
		"model":           result.Model,
		"batches":         result.Batches,
		"meta": map[string]interface{}{
			"session_id": sessionID,
			"timestamp":  timestamp,
			"client_ip":  c.getClientIP(),
			"user_agent": c.Ctx.Input.UserAgent(),
			"elapsed_ms": result.ElapsedMs,
		},
	})
}

// AutotrainStatus 自动训练agent的最近一轮结果
func (c *TrainController) AutotrainStatus() {
	if autoTrainer == nil {
		c.JSONError(http.StatusServiceUnavailable, "auto-trainer not configured")
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"last_run": autoTrainer.LastRun(),
	})
}

// AutotrainPreview 返回下一轮将进入训练的高频prompt，不触发训练
func (c *TrainController) AutotrainPreview() {
	if autoTrainer == nil {
		c.JSONError(http.StatusServiceUnavailable, "auto-trainer not configured")
		return
	}

	texts, err := autoTrainer.Preview()
	if err != nil {
		logger.Error("auto-train preview failed", zap.Error(err))
		c.JSONError(http.StatusInternalServerError, "preview failed")
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"candidates": texts,
		"count":      len(texts),
	})
}

// Estimate 预估训练数据：只过滤和计token，不提交不落库
func (c *TrainController) Estimate() {
	var req TrainRequest
	if !c.parseBody(&req) {
		return
	}

	sessionID := uuid.New().String()

	texts := req.allTexts()
	if len(texts) == 0 {
		c.JSONError(http.StatusBadRequest, "texts or pairs is required")
		return
	}

	var counter *services.TokenCounter
	if llmEngine != nil {
		counter = llmEngine.Counter()
	}

	estimate := trainingService.Estimate(texts, req.Clean, req.dedupe(), req.MinLength, counter)
	estimate["meta"] = map[string]interface{}{
		"session_id": sessionID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"client_ip":  c.getClientIP(),
		"user_agent": c.Ctx.Input.UserAgent(),
	}
	c.JSON(http.StatusOK, estimate)
}
