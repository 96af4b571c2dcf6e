package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/brainzmonster/os/internal/models"
	"github.com/brainzmonster/os/internal/techparser"
)

// AnalyticsService 提示词使用分析
type AnalyticsService struct {
	db      *gorm.DB
	counter *TokenCounter
}

// NewAnalyticsService 创建分析服务实例
func NewAnalyticsService(db *gorm.DB, counter *TokenCounter) *AnalyticsService {
	return &AnalyticsService{db: db, counter: counter}
}

// CommonPromptsFilter 高频prompt查询条件
type CommonPromptsFilter struct {
	Limit           int
	MinLength       int
	SinceDays       int
	Tag             string
	ExcludeTag      string
	UserID          *uint
	CaseInsensitive bool
}

// CommonPrompt 高频prompt条目
type CommonPrompt struct {
	Prompt string `json:"prompt"`
	Count  int64  `json:"count"`
	Tokens int    `json:"tokens"`
}

// MostCommonPrompts 按出现次数倒序的高频prompt
func (s *AnalyticsService) MostCommonPrompts(filter CommonPromptsFilter) ([]CommonPrompt, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 20
	}
	if filter.MinLength <= 0 {
		filter.MinLength = 5
	}

	groupExpr := "prompt"
	if filter.CaseInsensitive {
		groupExpr = "LOWER(prompt)"
	}

	query := s.db.Model(&models.PromptLog{}).
		Select(groupExpr + " AS prompt, COUNT(*) AS count")
	if filter.Tag != "" {
		query = query.Where("tag = ?", filter.Tag)
	}
	if filter.ExcludeTag != "" {
		query = query.Where("tag <> ?", filter.ExcludeTag)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.SinceDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -filter.SinceDays)
		query = query.Where("created_at >= ?", cutoff)
	}

	type row struct {
		Prompt string
		Count  int64
	}
	var rows []row
	err := query.Group(groupExpr).
		Order("count DESC").
		Limit(filter.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("聚合高频prompt失败: %w", err)
	}

	// 聚合后再过滤过短的条目
	out := make([]CommonPrompt, 0, len(rows))
	for _, r := range rows {
		if len(strings.TrimSpace(r.Prompt)) < filter.MinLength {
			continue
		}
		tokens := -1
		if s.counter != nil {
			tokens = s.counter.TryCount(r.Prompt)
		}
		out = append(out, CommonPrompt{Prompt: r.Prompt, Count: r.Count, Tokens: tokens})
	}
	return out, nil
}

// TrendPoint 单日活跃度
type TrendPoint struct {
	Date          string  `json:"date"`
	Count         int     `json:"count"`
	UniquePrompts int     `json:"unique_prompts"`
	AvgLen        float64 `json:"avg_len"`
	AvgTokens     float64 `json:"avg_tokens"`
}

// PromptTrend 最近N天的日级活跃度时间序列
// 没有数据的日期补零，保证序列连续
func (s *AnalyticsService) PromptTrend(days int, tag string, userID *uint, caseInsensitive bool) ([]TrendPoint, error) {
	if days <= 0 || days > 365 {
		days = 7
	}

	start := time.Now().UTC().AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)

	query := s.db.Model(&models.PromptLog{}).
		Select("created_at, prompt").
		Where("created_at >= ?", start)
	if tag != "" {
		query = query.Where("tag = ?", tag)
	}
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	type row struct {
		CreatedAt time.Time
		Prompt    string
	}
	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询活跃度失败: %w", err)
	}

	type bucket struct {
		count    int
		unique   map[string]struct{}
		lenSum   int
		tokSum   int
		tokCount int
	}
	buckets := make(map[string]*bucket)
	for _, r := range rows {
		key := r.CreatedAt.UTC().Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{unique: make(map[string]struct{})}
			buckets[key] = b
		}
		b.count++

		uniqueKey := r.Prompt
		if caseInsensitive {
			uniqueKey = strings.ToLower(uniqueKey)
		}
		b.unique[uniqueKey] = struct{}{}

		trimmed := strings.TrimSpace(r.Prompt)
		b.lenSum += len([]rune(trimmed))
		if s.counter != nil {
			if n := s.counter.TryCount(trimmed); n >= 0 {
				b.tokSum += n
				b.tokCount++
			}
		}
	}

	out := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format("2006-01-02")
		point := TrendPoint{Date: key}
		if b, ok := buckets[key]; ok {
			point.Count = b.count
			point.UniquePrompts = len(b.unique)
			point.AvgLen = round2(float64(b.lenSum) / float64(b.count))
			if b.tokCount > 0 {
				point.AvgTokens = round2(float64(b.tokSum) / float64(b.tokCount))
			}
		}
		out = append(out, point)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// TechBreakdown 最近N条日志的技术词分类统计
type TechBreakdown struct {
	Sampled    int            `json:"sampled"`
	Technical  int            `json:"technical"`
	Categories map[string]int `json:"categories"`
	TopTerms   []string       `json:"top_terms"`
}

// TechSummary 用技术词表扫描最近的prompt，按分类聚合
func (s *AnalyticsService) TechSummary(limit int, tag string) (*TechBreakdown, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}

	query := s.db.Model(&models.PromptLog{}).
		Select("prompt").
		Order("created_at DESC").
		Limit(limit)
	if tag != "" {
		query = query.Where("tag = ?", tag)
	}

	var prompts []string
	if err := query.Scan(&prompts).Error; err != nil {
		return nil, fmt.Errorf("采样日志失败: %w", err)
	}

	out := &TechBreakdown{
		Sampled:    len(prompts),
		Categories: make(map[string]int),
	}
	termCounts := make(map[string]int)

	for _, p := range prompts {
		meta := techparser.ExtractMetadata(p)
		if meta.Score > 0 {
			out.Technical++
		}
		for category, terms := range meta.Categories {
			out.Categories[category] += len(terms)
		}
		for _, term := range meta.MatchedTerms {
			termCounts[term]++
		}
	}

	terms := make([]string, 0, len(termCounts))
	for term := range termCounts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if termCounts[terms[i]] != termCounts[terms[j]] {
			return termCounts[terms[i]] > termCounts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > 10 {
		terms = terms[:10]
	}
	out.TopTerms = terms

	return out, nil
}
