package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenCounterCount(t *testing.T) {
	counter := NewTokenCounter("gpt-3.5-turbo")

	n := counter.Count("hello world")
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 5)
}

func TestTokenCounterCountBatch(t *testing.T) {
	counter := NewTokenCounter("gpt-3.5-turbo")

	texts := []string{"hello world", "another sample"}
	total := counter.CountBatch(texts)
	sum := counter.Count(texts[0]) + counter.Count(texts[1])
	assert.Equal(t, sum, total)
}

func TestTokenCounterEmpty(t *testing.T) {
	counter := NewTokenCounter("gpt-3.5-turbo")

	assert.Equal(t, 0, counter.CountBatch(nil))
	assert.Equal(t, 0, counter.Count(""))
}

func TestTokenCounterUnknownModelFallsBack(t *testing.T) {
	counter := NewTokenCounter("no-such-model-xyz")

	// 未知模型回退到cl100k_base，仍然可用
	assert.Greater(t, counter.Count("hello world"), 0)
}
