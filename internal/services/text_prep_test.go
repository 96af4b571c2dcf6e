package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims whitespace", "  hello world  ", "hello world"},
		{"collapses spaces", "hello    world", "hello world"},
		{"newlines and tabs to space", "hello\n\tworld", "hello world"},
		{"empty string", "", ""},
		{"only whitespace", " \n\t ", ""},
		{"preserves unicode", "  你好  世界  ", "你好 世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	input := "  a\n\nb\t c  "
	once := CleanText(input)
	twice := CleanText(once)
	assert.Equal(t, once, twice)
}

func TestPrepareTexts(t *testing.T) {
	texts := []string{
		"  hello   world  ",
		"hello world",
		"hi",
		"",
		"another sample text",
	}

	result, stats := PrepareTexts(texts, PrepareOptions{
		Clean:       true,
		Deduplicate: true,
		MinLength:   5,
	})

	assert.Equal(t, []string{"hello world", "another sample text"}, result)
	assert.Equal(t, 5, stats.Original)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 3, stats.Removed)
	assert.True(t, stats.CleanApplied)
	assert.True(t, stats.Deduplicated)
	assert.Equal(t, 5, stats.MinLength)
}

func TestPrepareTextsIdempotent(t *testing.T) {
	opts := PrepareOptions{Clean: true, Deduplicate: true, MinLength: 5}
	texts := []string{
		"  hello   world  ",
		"hello world",
		"hi",
		"another sample text",
		"another  sample\ttext",
	}

	once, _ := PrepareTexts(texts, opts)
	twice, stats := PrepareTexts(once, opts)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, len(once), stats.Processed)
}

func TestPrepareTextsMinLengthNeverGrows(t *testing.T) {
	texts := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		texts = append(texts, strings.Repeat("x", i))
	}

	for _, minLength := range []int{0, 1, 10, 39, 100} {
		out, stats := PrepareTexts(texts, PrepareOptions{MinLength: minLength})
		assert.LessOrEqual(t, len(out), len(texts), "min_length=%d", minLength)
		assert.Equal(t, len(texts)-len(out), stats.Removed, "min_length=%d", minLength)
	}
}

func TestPrepareTextsOrderPreserved(t *testing.T) {
	texts := []string{"b", "a", "b", "c", "a"}
	result, _ := PrepareTexts(texts, PrepareOptions{Deduplicate: true})
	assert.Equal(t, []string{"b", "a", "c"}, result)
}

func TestPrepareTextsAllFiltered(t *testing.T) {
	result, stats := PrepareTexts([]string{"a", "b"}, PrepareOptions{MinLength: 100})
	assert.Empty(t, result)
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, 0, stats.Processed)
}

func TestPrepareTextsNoOptions(t *testing.T) {
	texts := []string{"  raw  ", "  raw  "}
	result, stats := PrepareTexts(texts, PrepareOptions{})
	assert.Equal(t, texts, result)
	assert.Equal(t, 0, stats.Removed)
}

func TestSanitizeTexts(t *testing.T) {
	texts := []string{
		"one two three",
		"one",
		"one two three",
		"four five six seven",
	}

	result, stats := SanitizeTexts(texts, 3, true)

	assert.Equal(t, []string{"one two three", "four five six seven"}, result)
	assert.Equal(t, 4, stats.Original)
	assert.Equal(t, 2, stats.AfterMinWords)
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, 3, stats.MinWords)
}
