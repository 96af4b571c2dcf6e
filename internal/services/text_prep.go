package services

import (
	"strings"
	"unicode"
)

// PrepareOptions 文本预处理选项
type PrepareOptions struct {
	Clean       bool
	Deduplicate bool
	MinLength   int // 按字符数过滤
}

// PrepStats 预处理前后的统计信息
type PrepStats struct {
	Original     int  `json:"original"`
	Processed    int  `json:"processed"`
	Removed      int  `json:"removed"`
	CleanApplied bool `json:"clean_applied"`
	Deduplicated bool `json:"deduplicated"`
	MinLength    int  `json:"min_length"`
}

// CleanText 基础文本清洗
// 去掉首尾空白和控制字符，压缩连续空白为单个空格
func CleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastSpace := false
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}

	return strings.TrimSpace(b.String())
}

// PrepareTexts 训练前的文本预处理管道
// 固定顺序：清洗 -> 长度过滤 -> 精确去重（保留首次出现的顺序）
// 永远不返回错误，全部被过滤时由调用方按"nothing qualified"处理
func PrepareTexts(texts []string, opts PrepareOptions) ([]string, PrepStats) {
	original := len(texts)

	if opts.Clean {
		cleaned := make([]string, 0, len(texts))
		for _, t := range texts {
			cleaned = append(cleaned, CleanText(t))
		}
		texts = cleaned
	}

	if opts.MinLength > 0 {
		filtered := make([]string, 0, len(texts))
		for _, t := range texts {
			if len([]rune(t)) >= opts.MinLength {
				filtered = append(filtered, t)
			}
		}
		texts = filtered
	}

	if opts.Deduplicate {
		seen := make(map[string]struct{}, len(texts))
		deduped := make([]string, 0, len(texts))
		for _, t := range texts {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			deduped = append(deduped, t)
		}
		texts = deduped
	}

	stats := PrepStats{
		Original:     original,
		Processed:    len(texts),
		Removed:      original - len(texts),
		CleanApplied: opts.Clean,
		Deduplicated: opts.Deduplicate,
		MinLength:    opts.MinLength,
	}
	return texts, stats
}

// SanitizeStats CLI训练工具用的过滤统计
type SanitizeStats struct {
	Original      int  `json:"original"`
	AfterMinWords int  `json:"after_min_words"`
	Removed       int  `json:"removed"`
	Deduped       bool `json:"deduped"`
	MinWords      int  `json:"min_words"`
}

// SanitizeTexts CLI训练路径的保守过滤
// 按词数过滤（不动格式和大小写），可选稳定顺序去重
func SanitizeTexts(texts []string, minWords int, dedupe bool) ([]string, SanitizeStats) {
	original := len(texts)
	if minWords < 0 {
		minWords = 0
	}

	filtered := make([]string, 0, len(texts))
	for _, t := range texts {
		if len(strings.Fields(t)) >= minWords {
			filtered = append(filtered, t)
		}
	}

	if dedupe {
		seen := make(map[string]struct{}, len(filtered))
		stable := make([]string, 0, len(filtered))
		for _, t := range filtered {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			stable = append(stable, t)
		}
		filtered = stable
	}

	stats := SanitizeStats{
		Original:      original,
		AfterMinWords: len(filtered),
		Removed:       original - len(filtered),
		Deduped:       dedupe,
		MinWords:      minWords,
	}
	return filtered, stats
}
