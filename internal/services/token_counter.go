package services

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/brainzmonster/os/internal/logger"
)

// TokenCounter 基于tiktoken的token计数器
// 编码器加载失败时回退到 字符数/4 的估算
type TokenCounter struct {
	model string

	mu  sync.Mutex
	tke *tiktoken.Tiktoken
	// 加载失败后不再重试
	loadFailed bool
}

// NewTokenCounter 创建指定模型的计数器，编码器按需懒加载
func NewTokenCounter(model string) *TokenCounter {
	return &TokenCounter{model: model}
}

func (c *TokenCounter) encoder() *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tke != nil || c.loadFailed {
		return c.tke
	}

	tke, err := tiktoken.EncodingForModel(c.model)
	if err != nil {
		// 未知模型回退到cl100k_base
		tke, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logger.Warn("token encoder unavailable, falling back to estimate: " + err.Error())
		c.loadFailed = true
		return nil
	}
	c.tke = tke
	return c.tke
}

// Available 编码器是否可用
func (c *TokenCounter) Available() bool {
	return c.encoder() != nil
}

// Count 统计单条文本的token数
func (c *TokenCounter) Count(text string) int {
	if tke := c.encoder(); tke != nil {
		return len(tke.Encode(text, nil, nil))
	}
	return len([]rune(text)) / 4
}

// CountBatch 统计多条文本的总token数
func (c *TokenCounter) CountBatch(texts []string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}

// TryCount 精确统计，编码器不可用时返回-1表示"无法统计"
// 记录和预估接口用这个约定，避免把估算值当成真实token数落库
func (c *TokenCounter) TryCount(text string) int {
	tke := c.encoder()
	if tke == nil {
		return -1
	}
	return len(tke.Encode(text, nil, nil))
}

// TryCountBatch 批量精确统计，不可用时返回-1
func (c *TokenCounter) TryCountBatch(texts []string) int {
	tke := c.encoder()
	if tke == nil {
		return -1
	}
	total := 0
	for _, t := range texts {
		total += len(tke.Encode(t, nil, nil))
	}
	return total
}
