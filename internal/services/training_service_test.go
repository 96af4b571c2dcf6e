package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainzmonster/os/internal/config"
)

func TestTrainingService_TrainDryRun(t *testing.T) {
	svc := NewTrainingService(nil, nil, config.TrainConfig{Model: "gpt-3.5-turbo"})

	result, err := svc.Train(context.Background(), TrainInput{
		Texts:       []string{"  sample one  ", "sample one", "x"},
		Clean:       true,
		Deduplicate: true,
		MinLength:   5,
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Trained)
	assert.Equal(t, 0, result.Batches)
	assert.Empty(t, result.JobID)
	assert.Equal(t, 3, result.Stats.Original)
	assert.Equal(t, 2, result.Stats.Removed)
}

func TestTrainingService_TrainNothingQualified(t *testing.T) {
	svc := NewTrainingService(nil, nil, config.TrainConfig{})

	_, err := svc.Train(context.Background(), TrainInput{
		Texts:     []string{"a", "b"},
		MinLength: 100,
	})
	assert.ErrorIs(t, err, ErrNothingToTrain)
}

func TestTrainingService_Estimate(t *testing.T) {
	svc := NewTrainingService(nil, nil, config.TrainConfig{})
	counter := NewTokenCounter("gpt-3.5-turbo")

	out := svc.Estimate([]string{"hello world sample", "hello world sample"}, true, true, 0, counter)
	assert.Equal(t, "ok", out["status"])
	prep := out["preprocess"].(PrepStats)
	assert.Equal(t, 1, prep.Processed)

	stats := out["stats"].(map[string]interface{})
	assert.Equal(t, 1, stats["count"])
	assert.Equal(t, 18, stats["chars_min"])
	assert.Equal(t, 18, stats["chars_max"])
}

func TestTrainingService_EstimateEmpty(t *testing.T) {
	svc := NewTrainingService(nil, nil, config.TrainConfig{})

	out := svc.Estimate([]string{"a"}, false, false, 50, nil)
	assert.Equal(t, "empty", out["status"])
	prep := out["preprocess"].(PrepStats)
	assert.Equal(t, 1, prep.Removed)
}

func TestBuildCorpus(t *testing.T) {
	corpus, err := buildCorpus([]string{"one", "two"})
	require.NoError(t, err)
	assert.Equal(t, "{\"text\":\"one\"}\n{\"text\":\"two\"}\n", string(corpus))
}

func TestFlattenPairs(t *testing.T) {
	texts := FlattenPairs([]PromptCompletionPair{
		{Prompt: "hi", Completion: "hello"},
	})
	require.Len(t, texts, 1)
	assert.Equal(t, "<|user|>: hi\n<|assistant|>: hello", texts[0])
}
