package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/models"
)

// ErrEmptyPrompt 清洗后内容为空
var ErrEmptyPrompt = errors.New("prompt is empty after cleaning")

// MemoryService 提示词记忆层
// 每条进入系统的prompt都落库，短窗口内的重复写入会被抑制
type MemoryService struct {
	db      *gorm.DB
	rdb     *redis.Client
	counter *TokenCounter

	// 重复抑制窗口，0表示关闭
	dedupeWindow time.Duration
}

// NewMemoryService 创建记忆服务，rdb可以为nil（降级为窗口内DB查重）
func NewMemoryService(db *gorm.DB, rdb *redis.Client, counter *TokenCounter, dedupeWindowSec int) *MemoryService {
	return &MemoryService{
		db:           db,
		rdb:          rdb,
		counter:      counter,
		dedupeWindow: time.Duration(dedupeWindowSec) * time.Second,
	}
}

// LogPromptInput 一次记录请求
type LogPromptInput struct {
	Prompt string
	UserID *uint
	Tag    string
	Source string
}

func dedupeKey(userID *uint, prompt string) string {
	h := sha256.Sum256([]byte(prompt))
	uid := "anon"
	if userID != nil {
		uid = fmt.Sprintf("%d", *userID)
	}
	return "brainz:prompt:dedupe:" + uid + ":" + hex.EncodeToString(h[:16])
}

// isDuplicate 窗口内是否已经记录过同样的prompt
// 优先走Redis SETNX，Redis不可用时退回数据库时间窗查询
func (s *MemoryService) isDuplicate(ctx context.Context, userID *uint, prompt string) bool {
	if s.dedupeWindow <= 0 {
		return false
	}

	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, dedupeKey(userID, prompt), 1, s.dedupeWindow).Result()
		if err == nil {
			return !ok
		}
		logger.Warn("dedupe via redis failed, falling back to db", zap.Error(err))
	}

	since := time.Now().Add(-s.dedupeWindow)
	query := s.db.Model(&models.PromptLog{}).
		Where("prompt = ? AND created_at > ?", prompt, since)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	} else {
		query = query.Where("user_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		logger.Warn("dedupe query failed", zap.Error(err))
		return false
	}
	return count > 0
}

// LogPrompt 记录一条prompt
// 返回(entry, suppressed, error)，suppressed为true表示窗口内重复、未写库
func (s *MemoryService) LogPrompt(ctx context.Context, in LogPromptInput) (*models.PromptLog, bool, error) {
	prompt := CleanText(in.Prompt)
	if prompt == "" {
		return nil, false, ErrEmptyPrompt
	}

	if s.isDuplicate(ctx, in.UserID, prompt) {
		return nil, true, nil
	}

	tokens := s.counter.TryCount(prompt)
	entry := &models.PromptLog{
		Prompt:     prompt,
		UserID:     in.UserID,
		Tag:        in.Tag,
		Source:     in.Source,
		TokensUsed: &tokens,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, false, fmt.Errorf("写入prompt日志失败: %w", err)
	}
	return entry, false, nil
}

// RecentFilter 日志查询条件
type RecentFilter struct {
	Limit  int
	Offset int
	UserID *uint
	Tag    string
	Source string
	Since  *time.Time
	Until  *time.Time
}

// RecentPrompts 按时间倒序返回日志
func (s *MemoryService) RecentPrompts(filter RecentFilter) ([]models.PromptLog, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 50
	}

	query := s.db.Model(&models.PromptLog{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Tag != "" {
		query = query.Where("tag = ?", filter.Tag)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Since != nil {
		query = query.Where("created_at > ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("created_at < ?", *filter.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计日志失败: %w", err)
	}

	var entries []models.PromptLog
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询日志失败: %w", err)
	}
	return entries, total, nil
}

// RecentTexts 只取prompt文本，训练采样用
func (s *MemoryService) RecentTexts(limit int, tag string) ([]string, error) {
	entries, _, err := s.RecentPrompts(RecentFilter{Limit: limit, Tag: tag})
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Prompt)
	}
	return texts, nil
}

// MemoryStats 日志统计
type MemoryStats struct {
	TotalPrompts int64            `json:"total_prompts"`
	TotalTokens  int64            `json:"total_tokens"`
	UniqueUsers  int64            `json:"unique_users"`
	AvgTokens    float64          `json:"avg_tokens"`
	ByTag        map[string]int64 `json:"by_tag"`
	BySource     map[string]int64 `json:"by_source"`
	ByUser       map[string]int64 `json:"by_user"`
	OldestEntry  *time.Time       `json:"oldest_entry,omitempty"`
	NewestEntry  *time.Time       `json:"newest_entry,omitempty"`
}

// Stats 汇总日志统计信息
func (s *MemoryService) Stats() (*MemoryStats, error) {
	stats := &MemoryStats{
		ByTag:    make(map[string]int64),
		BySource: make(map[string]int64),
		ByUser:   make(map[string]int64),
	}

	if err := s.db.Model(&models.PromptLog{}).Count(&stats.TotalPrompts).Error; err != nil {
		return nil, fmt.Errorf("统计日志失败: %w", err)
	}
	if stats.TotalPrompts == 0 {
		return stats, nil
	}

	// tokens_used为-1表示当时无法统计，不计入总数
	row := s.db.Model(&models.PromptLog{}).
		Select("COALESCE(SUM(tokens_used), 0)").
		Where("tokens_used > 0").
		Row()
	if err := row.Scan(&stats.TotalTokens); err != nil {
		return nil, fmt.Errorf("统计token失败: %w", err)
	}

	avgRow := s.db.Model(&models.PromptLog{}).
		Select("COALESCE(AVG(tokens_used), 0)").
		Where("tokens_used > 0").
		Row()
	if err := avgRow.Scan(&stats.AvgTokens); err != nil {
		return nil, fmt.Errorf("统计token均值失败: %w", err)
	}

	s.db.Model(&models.PromptLog{}).
		Where("user_id IS NOT NULL").
		Distinct("user_id").
		Count(&stats.UniqueUsers)

	type bucket struct {
		Key   string
		Count int64
	}
	var tagBuckets []bucket
	s.db.Model(&models.PromptLog{}).
		Select("tag AS key, COUNT(*) AS count").
		Where("tag <> ''").
		Group("tag").
		Scan(&tagBuckets)
	for _, b := range tagBuckets {
		stats.ByTag[b.Key] = b.Count
	}

	var sourceBuckets []bucket
	s.db.Model(&models.PromptLog{}).
		Select("source AS key, COUNT(*) AS count").
		Where("source <> ''").
		Group("source").
		Scan(&sourceBuckets)
	for _, b := range sourceBuckets {
		stats.BySource[b.Key] = b.Count
	}

	var userBuckets []bucket
	s.db.Model(&models.PromptLog{}).
		Select("user_id AS key, COUNT(*) AS count").
		Where("user_id IS NOT NULL").
		Group("user_id").
		Order("count DESC").
		Limit(10).
		Scan(&userBuckets)
	for _, b := range userBuckets {
		stats.ByUser[b.Key] = b.Count
	}

	var oldest, newest models.PromptLog
	if err := s.db.Order("created_at ASC").First(&oldest).Error; err == nil {
		stats.OldestEntry = &oldest.CreatedAt
	}
	if err := s.db.Order("created_at DESC").First(&newest).Error; err == nil {
		stats.NewestEntry = &newest.CreatedAt
	}

	return stats, nil
}

// PurgeBefore 删除指定时间之前的日志，返回删除条数
func (s *MemoryService) PurgeBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.PromptLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理日志失败: %w", result.Error)
	}
	logger.Info("prompt logs purged",
		zap.Int64("removed", result.RowsAffected),
		zap.Time("cutoff", cutoff))
	return result.RowsAffected, nil
}

// PurgeAll 清空全部日志
func (s *MemoryService) PurgeAll() (int64, error) {
	result := s.db.Where("1 = 1").Delete(&models.PromptLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理日志失败: %w", result.Error)
	}
	logger.Info("all prompt logs purged", zap.Int64("removed", result.RowsAffected))
	return result.RowsAffected, nil
}

// ExportNDJSON 把日志序列化成NDJSON行
func ExportNDJSON(entries []models.PromptLog) string {
	var b strings.Builder
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}
