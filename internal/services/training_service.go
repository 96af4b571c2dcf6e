package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/logger"
)

// ErrNothingToTrain 过滤后没有可用样本
var ErrNothingToTrain = errors.New("no texts qualified for training")

// TrainingService 微调服务
// 把进入系统的文本整理成语料，提交给托管模型的fine-tune接口
type TrainingService struct {
	client *openai.Client
	memory *MemoryService
	cfg    config.TrainConfig
}

// NewTrainingService 创建训练服务实例
func NewTrainingService(client *openai.Client, memory *MemoryService, cfg config.TrainConfig) *TrainingService {
	return &TrainingService{
		client: client,
		memory: memory,
		cfg:    cfg,
	}
}

// TrainInput 一次训练请求
type TrainInput struct {
	Texts  []string
	Tag    string
	Source string
	// 预处理开关
	Clean       bool
	Deduplicate bool
	MinLength   int
	// DryRun只做预处理和记录，不提交任务
	DryRun bool
}

// TrainResult 训练提交结果
type TrainResult struct {
	Stats     PrepStats `json:"stats"`
	Trained   int       `json:"trained"`
	JobID     string    `json:"job_id,omitempty"`
	FileID    string    `json:"file_id,omitempty"`
	Model     string    `json:"model"`
	DryRun    bool      `json:"dry_run"`
	Batches   int       `json:"batches"`
	ElapsedMs int64     `json:"elapsed_ms"`
}

// buildCorpus 把样本编码成JSONL语料
func buildCorpus(texts []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range texts {
		if err := enc.Encode(map[string]string{"text": t}); err != nil {
			return nil, fmt.Errorf("编码语料失败: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// submitBatch 上传一批语料并创建fine-tune任务
func (s *TrainingService) submitBatch(ctx context.Context, batch []string, tag string) (fileID, jobID string, err error) {
	corpus, err := buildCorpus(batch)
	if err != nil {
		return "", "", err
	}

	name := fmt.Sprintf("brainz-train-%s-%d.jsonl", tag, time.Now().Unix())
	if tag == "" {
		name = fmt.Sprintf("brainz-train-%d.jsonl", time.Now().Unix())
	}

	file, err := s.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   corpus,
		Purpose: openai.PurposeFineTune,
	})
	if err != nil {
		return "", "", fmt.Errorf("上传训练文件失败: %w", err)
	}

	job, err := s.client.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: file.ID,
		Model:        s.cfg.Model,
		Suffix:       s.cfg.Suffix,
	})
	if err != nil {
		return file.ID, "", fmt.Errorf("创建微调任务失败: %w", err)
	}
	return file.ID, job.ID, nil
}

// Train 执行一次训练：预处理 -> 落库 -> 分批提交
func (s *TrainingService) Train(ctx context.Context, in TrainInput) (*TrainResult, error) {
	start := time.Now()

	texts, stats := PrepareTexts(in.Texts, PrepareOptions{
		Clean:       in.Clean,
		Deduplicate: in.Deduplicate,
		MinLength:   in.MinLength,
	})
	if len(texts) == 0 {
		return nil, ErrNothingToTrain
	}

	// 每条训练样本同样进入记忆层
	if s.memory != nil {
		tag := in.Tag
		if tag == "" {
			tag = "train"
		}
		source := in.Source
		if source == "" {
			source = "train"
		}
		for _, t := range texts {
			if _, _, err := s.memory.LogPrompt(ctx, LogPromptInput{
				Prompt: t,
				Tag:    tag,
				Source: source,
			}); err != nil && !errors.Is(err, ErrEmptyPrompt) {
				logger.Warn("failed to log training sample", zap.Error(err))
			}
		}
	}

	result := &TrainResult{
		Stats:   stats,
		Trained: len(texts),
		Model:   s.cfg.Model,
		DryRun:  in.DryRun,
	}

	if in.DryRun {
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result, nil
	}

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		fileID, jobID, err := s.submitBatch(ctx, texts[i:end], in.Tag)
		if err != nil {
			return nil, err
		}
		result.Batches++
		// 多批时保留最后一批的任务标识
		result.FileID = fileID
		result.JobID = jobID

		if s.cfg.InterBatchSleepSec > 0 && end < len(texts) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(s.cfg.InterBatchSleepSec * float64(time.Second))):
			}
		}
	}

	logger.Info("training submitted",
		zap.Int("samples", result.Trained),
		zap.Int("batches", result.Batches),
		zap.String("job_id", result.JobID),
		zap.String("model", result.Model))

	result.ElapsedMs = time.Since(start).Milliseconds()
	return result, nil
}

// Estimate 只做预处理，返回过滤统计和字符长度分布，不提交任务不落库
// 全部被过滤时status为empty而不是错误
func (s *TrainingService) Estimate(texts []string, clean, dedupe bool, minLength int, counter *TokenCounter) map[string]interface{} {
	processed, prep := PrepareTexts(texts, PrepareOptions{
		Clean:       clean,
		Deduplicate: dedupe,
		MinLength:   minLength,
	})

	if len(processed) == 0 {
		return map[string]interface{}{
			"status":     "empty",
			"message":    "all samples were filtered out by preprocessing",
			"preprocess": prep,
		}
	}

	tokens := -1
	if counter != nil {
		tokens = counter.TryCountBatch(processed)
	}

	lengths := make([]int, len(processed))
	sum := 0
	for i, t := range processed {
		lengths[i] = len([]rune(t))
		sum += lengths[i]
	}
	sort.Ints(lengths)

	median := float64(lengths[len(lengths)/2])
	if len(lengths)%2 == 0 {
		median = float64(lengths[len(lengths)/2-1]+lengths[len(lengths)/2]) / 2
	}

	stats := map[string]interface{}{
		"count":                len(processed),
		"chars_min":            lengths[0],
		"chars_max":            lengths[len(lengths)-1],
		"chars_avg":            math.Round(float64(sum)/float64(len(processed))*100) / 100,
		"chars_median":         median,
		"token_estimate_total": tokens,
	}
	if tokens >= 0 {
		stats["token_estimate_avg"] = math.Round(float64(tokens)/float64(len(processed))*100) / 100
	} else {
		stats["token_estimate_avg"] = nil
	}

	return map[string]interface{}{
		"status":       "ok",
		"preview_only": true,
		"preprocess":   prep,
		"stats":        stats,
	}
}

// FlattenPairs 把prompt/completion对展平成训练文本
func FlattenPairs(pairs []PromptCompletionPair) []string {
	texts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		texts = append(texts, fmt.Sprintf("<|user|>: %s\n<|assistant|>: %s", p.Prompt, p.Completion))
	}
	return texts
}

// PromptCompletionPair 一组对话式训练样本
type PromptCompletionPair struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}
