package agents

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

// RunResult 一轮自动训练的结果
type RunResult struct {
	Session   string    `json:"session"`
	Status    string    `json:"status"`
	Qualified int       `json:"qualified"`
	Trained   int       `json:"trained"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AutoTrainer 后台自动训练agent
// 周期性把高频prompt送回训练服务，数据不足时跳过
type AutoTrainer struct {
	analytics *services.AnalyticsService
	training  *services.TrainingService
	cfg       config.AutoTrainConfig

	// 单条prompt进入训练所需的最低出现次数
	threshold int

	mu      sync.Mutex
	running bool
	stop    context.CancelFunc
	lastRun *RunResult
}

// 训练样本回灌记忆层时用的tag，统计高频prompt时要排除，避免自我放大
const autotrainTag = "autotrain"

// NewAutoTrainer 创建自动训练agent
func NewAutoTrainer(analytics *services.AnalyticsService, training *services.TrainingService, cfg config.AutoTrainConfig) *AutoTrainer {
	return &AutoTrainer{
		analytics: analytics,
		training:  training,
		cfg:       cfg,
		threshold: 10,
	}
}

// RunOnce 执行一轮分析和训练
func (a *AutoTrainer) RunOnce(ctx context.Context) *RunResult {
	session := uuid.New().String()
	log := logger.Named("auto_trainer").With(zap.String("session", session))
	log.Info("starting auto-training analysis")

	result := &RunResult{Session: session, Timestamp: time.Now().UTC()}

	limit := a.cfg.MinSamples * 4
	if limit < 50 {
		limit = 50
	}
	prompts, err := a.analytics.MostCommonPrompts(services.CommonPromptsFilter{
		Limit:      limit,
		Tag:        a.cfg.Tag,
		ExcludeTag: autotrainTag,
	})
	if err != nil {
		log.Error("analytics query failed", zap.Error(err))
		result.Status = "error"
		result.Message = err.Error()
		a.record(result)
		return result
	}

	texts := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if p.Count >= int64(a.threshold) {
			texts = append(texts, p.Prompt)
		}
	}
	result.Qualified = len(texts)

	if len(texts) < a.cfg.MinSamples {
		log.Info("not enough qualified prompts, skipping",
			zap.Int("qualified", len(texts)),
			zap.Int("min_samples", a.cfg.MinSamples))
		result.Status = "skipped"
		a.record(result)
		return result
	}

	trainResult, err := a.training.Train(ctx, services.TrainInput{
		Texts:       texts,
		Tag:         autotrainTag,
		Clean:       true,
		Deduplicate: true,
		DryRun:      a.cfg.DryRun,
	})
	if err != nil {
		log.Error("auto-training failed", zap.Error(err))
		result.Status = "error"
		result.Message = err.Error()
		a.record(result)
		return result
	}

	if a.cfg.DryRun {
		result.Status = "dry-run"
	} else {
		result.Status = "trained"
		result.Trained = trainResult.Trained
	}
	log.Info("auto-training round finished",
		zap.String("status", result.Status),
		zap.Int("qualified", result.Qualified),
		zap.Int("trained", result.Trained))

	a.record(result)
	return result
}

// Preview 返回将进入训练的数据，不触发训练
func (a *AutoTrainer) Preview() ([]string, error) {
	prompts, err := a.analytics.MostCommonPrompts(services.CommonPromptsFilter{
		Limit:      a.cfg.MinSamples * 4,
		Tag:        a.cfg.Tag,
		ExcludeTag: autotrainTag,
	})
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if p.Count >= int64(a.threshold) {
			texts = append(texts, p.Prompt)
		}
	}
	return texts, nil
}

// Start 启动后台循环
func (a *AutoTrainer) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running || !a.cfg.Enabled {
		a.mu.Unlock()
		return
	}
	ctx, a.stop = context.WithCancel(ctx)
	a.running = true
	a.mu.Unlock()

	interval := time.Duration(a.cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	logger.Info("auto-trainer started",
		zap.Duration("interval", interval),
		zap.Bool("dry_run", a.cfg.DryRun))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("auto-trainer stopped")
				return
			case <-ticker.C:
				a.RunOnce(ctx)
			}
		}
	}()
}

// Stop 停止后台循环
func (a *AutoTrainer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		a.stop()
	}
	a.running = false
}

// LastRun 最近一轮的结果，没跑过返回nil
func (a *AutoTrainer) LastRun() *RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun
}

func (a *AutoTrainer) record(result *RunResult) {
	a.mu.Lock()
	a.lastRun = result
	a.mu.Unlock()
}
