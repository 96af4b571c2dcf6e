package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brainz_llm_requests_total",
		Help: "Total LLM requests by status",
	}, []string{"status", "mode"})

	inferenceSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "brainz_llm_inference_seconds",
		Help:    "LLM inference duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"mode"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "brainz_llm_tokens_total",
		Help: "Total tokens consumed by direction",
	}, []string{"direction"})
)

// ErrNotReady 引擎未初始化
var ErrNotReady = errors.New("engine not ready")

// QueryOptions 单次查询的可调参数，nil字段使用配置默认值
type QueryOptions struct {
	MaxTokens         int
	Temperature       *float32
	TopP              *float32
	RepetitionPenalty *float32
	Seed              *int
	System            string
}

// QueryResult 一次推理的结果和用量
type QueryResult struct {
	Text             string
	Model            string
	InputTokens      int
	OutputTokens     int
	TotalTokens      int
	InferenceSeconds float64
}

// StreamChunk 流式推理的单个增量
// Err非nil表示流中断，之后通道关闭
type StreamChunk struct {
	Content string
	Done    bool
	Usage   *openai.Usage
	Err     error
}

// Engine 托管模型的推理引擎
// 包装OpenAI兼容接口，持有token计数器和启动状态
type Engine struct {
	client  *openai.Client
	cfg     config.LLMConfig
	counter *services.TokenCounter

	mu       sync.RWMutex
	ready    bool
	bootedAt time.Time
	warmedUp bool
}

var (
	defaultEngine *Engine
	engineOnce    sync.Once
)

// Boot 初始化全局引擎单例
func Boot(cfg config.LLMConfig) *Engine {
	engineOnce.Do(func() {
		defaultEngine = New(cfg)
	})
	return defaultEngine
}

// Get 返回全局引擎，Boot之前返回nil
func Get() *Engine {
	return defaultEngine
}

// New 创建引擎实例
func New(cfg config.LLMConfig) *Engine {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	e := &Engine{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		counter: services.NewTokenCounter(cfg.Model),
	}

	e.mu.Lock()
	e.ready = cfg.APIKey != ""
	e.bootedAt = time.Now()
	e.mu.Unlock()

	if e.ready {
		logger.Info("✅ LLM engine initialized",
			zap.String("model", cfg.Model),
			zap.String("base_url", clientConfig.BaseURL))
	} else {
		logger.Warn("LLM engine booted without API key, inference disabled")
	}
	return e
}

// Client 暴露底层客户端给训练等旁路功能
func (e *Engine) Client() *openai.Client {
	return e.client
}

// Counter 返回引擎的token计数器
func (e *Engine) Counter() *services.TokenCounter {
	return e.counter
}

// Model 当前服务的模型名
func (e *Engine) Model() string {
	return e.cfg.Model
}

// Ready 引擎是否可以接受推理请求
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// StreamEnabled 流式接口是否开启
func (e *Engine) StreamEnabled() bool {
	return e.cfg.StreamEnabled
}

func (e *Engine) buildRequest(prompt string, opts QueryOptions) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		Messages:    messages,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: float32(e.cfg.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.RepetitionPenalty != nil {
		req.FrequencyPenalty = *opts.RepetitionPenalty
	}
	if opts.Seed != nil {
		req.Seed = opts.Seed
	}
	return req
}

// Query 同步推理
func (e *Engine) Query(ctx context.Context, prompt string, opts QueryOptions) (*QueryResult, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}

	timeout := time.Duration(e.cfg.RequestTimeout) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, e.buildRequest(prompt, opts))
	elapsed := time.Since(start).Seconds()

	if err != nil {
		requestsTotal.WithLabelValues("error", "sync").Inc()
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		requestsTotal.WithLabelValues("empty", "sync").Inc()
		return nil, errors.New("inference returned no choices")
	}

	requestsTotal.WithLabelValues("success", "sync").Inc()
	inferenceSeconds.WithLabelValues("sync").Observe(elapsed)
	tokensTotal.WithLabelValues("input").Add(float64(resp.Usage.PromptTokens))
	tokensTotal.WithLabelValues("output").Add(float64(resp.Usage.CompletionTokens))

	return &QueryResult{
		Text:             resp.Choices[0].Message.Content,
		Model:            resp.Model,
		InputTokens:      resp.Usage.PromptTokens,
		OutputTokens:     resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		InferenceSeconds: elapsed,
	}, nil
}

// QueryStream 流式推理
// 生产者goroutine从上游读增量写入通道，调用方消费直到通道关闭
func (e *Engine) QueryStream(ctx context.Context, prompt string, opts QueryOptions) (<-chan StreamChunk, error) {
	if !e.Ready() {
		return nil, ErrNotReady
	}
	if !e.cfg.StreamEnabled {
		return nil, errors.New("streaming is disabled")
	}

	req := e.buildRequest(prompt, opts)
	req.Stream = true

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		requestsTotal.WithLabelValues("error", "stream").Inc()
		return nil, fmt.Errorf("stream init failed: %w", err)
	}

	out := make(chan StreamChunk, 16)
	start := time.Now()

	go func() {
		defer close(out)
		defer stream.Close()

		var usage *openai.Usage
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				requestsTotal.WithLabelValues("success", "stream").Inc()
				inferenceSeconds.WithLabelValues("stream").Observe(time.Since(start).Seconds())
				select {
				case out <- StreamChunk{Done: true, Usage: usage}:
				case <-ctx.Done():
				}
				return
			}
			if err != nil {
				requestsTotal.WithLabelValues("error", "stream").Inc()
				select {
				case out <- StreamChunk{Err: fmt.Errorf("stream read failed: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			// Usage只在流末尾出现
			if resp.Usage != nil && resp.Usage.TotalTokens > 0 {
				usage = resp.Usage
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				select {
				case out <- StreamChunk{Content: resp.Choices[0].Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Warmup 启动后发一条小请求预热连接和模型
func (e *Engine) Warmup(ctx context.Context) error {
	if !e.Ready() {
		return ErrNotReady
	}

	_, err := e.Query(ctx, "Hello", QueryOptions{MaxTokens: 8})
	e.mu.Lock()
	e.warmedUp = err == nil
	e.mu.Unlock()

	if err != nil {
		logger.Warn("engine warmup failed", zap.Error(err))
		return err
	}
	logger.Info("✅ Engine warmed up")
	return nil
}

// Status 引擎状态快照，健康检查接口用
func (e *Engine) Status() map[string]interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return map[string]interface{}{
		"ready":          e.ready,
		"model":          e.cfg.Model,
		"stream_enabled": e.cfg.StreamEnabled,
		"warmed_up":      e.warmedUp,
		"tokenizer":      e.counter.Available(),
		"uptime_seconds": int64(time.Since(e.bootedAt).Seconds()),
	}
}

// Shutdown 目前只做日志占位，客户端无需显式关闭
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.ready = false
	e.mu.Unlock()
	logger.Info("LLM engine shut down")
}

// FlattenPair 把prompt/completion对压成单条训练文本
func FlattenPair(prompt, completion string) string {
	var b strings.Builder
	b.WriteString("<|user|>: ")
	b.WriteString(prompt)
	b.WriteString("\n<|assistant|>: ")
	b.WriteString(completion)
	return b.String()
}
