// Package techparser 从自由文本里识别技术领域词汇
// 用于给prompt打标签和做粗粒度的技术内容分类
package techparser

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Categories 预定义的技术词汇分类
var Categories = map[string][]string{
	"blockchain": {
		"solana", "ethereum", "blockchain", "wallet", "token", "smart contract",
		"hash", "ledger", "web3", "defi",
	},
	"dev": {
		"node.js", "react", "api", "graphql", "rpc", "ganache", "docker",
	},
	"ai": {
		"llm", "prompt", "embedding", "vector", "transformer", "agent",
	},
	"wallets": {
		"metamask", "phantom", "keplr", "trust wallet",
	},
}

var (
	patternMu sync.RWMutex
	patterns  = make(map[string]*regexp.Regexp)
)

// 词边界匹配，大小写不敏感
func termPattern(term string) *regexp.Regexp {
	patternMu.RLock()
	re, ok := patterns[term]
	patternMu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	patternMu.Lock()
	patterns[term] = re
	patternMu.Unlock()
	return re
}

// ExtractTechnologies 返回文本中出现的所有已知技术词
// customTerms可以临时扩展匹配范围
func ExtractTechnologies(text string, customTerms []string) []string {
	seen := make(map[string]struct{})
	for _, terms := range Categories {
		for _, term := range terms {
			seen[term] = struct{}{}
		}
	}
	for _, term := range customTerms {
		if term != "" {
			seen[strings.ToLower(term)] = struct{}{}
		}
	}

	var found []string
	for term := range seen {
		if termPattern(term).MatchString(text) {
			found = append(found, term)
		}
	}
	sort.Strings(found)
	return found
}

// Metadata 一段文本的技术元信息
type Metadata struct {
	Score        int                 `json:"score"`
	MatchedTerms []string            `json:"matched_terms"`
	Categories   map[string][]string `json:"categories"`
	WordCount    int                 `json:"word_count"`
}

// ExtractMetadata 按分类统计命中的技术词
func ExtractMetadata(text string) Metadata {
	meta := Metadata{
		Categories: make(map[string][]string),
		WordCount:  len(strings.Fields(text)),
	}

	categoryNames := make([]string, 0, len(Categories))
	for name := range Categories {
		categoryNames = append(categoryNames, name)
	}
	sort.Strings(categoryNames)

	for _, name := range categoryNames {
		for _, term := range Categories[name] {
			if termPattern(term).MatchString(text) {
				meta.Categories[name] = append(meta.Categories[name], term)
				meta.MatchedTerms = append(meta.MatchedTerms, term)
			}
		}
	}
	meta.Score = len(meta.MatchedTerms)
	return meta
}

// IsTechnical 命中词数达到阈值即视为技术文本
func IsTechnical(text string, minScore int) bool {
	if minScore <= 0 {
		minScore = 1
	}
	return ExtractMetadata(text).Score >= minScore
}

// CategorySummary 每个分类的命中数量
func CategorySummary(text string) map[string]int {
	summary := make(map[string]int, len(Categories))
	for name, terms := range Categories {
		count := 0
		for _, term := range terms {
			if termPattern(term).MatchString(text) {
				count++
			}
		}
		summary[name] = count
	}
	return summary
}
