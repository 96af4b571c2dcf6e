package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainzmonster/os/internal/models"
)

func newMemoryService(t *testing.T, dedupeSec int) (*MemoryService, sqlmock.Sqlmock) {
	t.Helper()
	gdb, mock := newMockDB(t)
	return NewMemoryService(gdb, nil, NewTokenCounter("gpt-3.5-turbo"), dedupeSec), mock
}

func TestMemoryService_LogPrompt(t *testing.T) {
	svc, mock := newMemoryService(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "prompt_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	entry, suppressed, err := svc.LogPrompt(context.Background(), LogPromptInput{
		Prompt: "  what is the   capital of France?  ",
		Tag:    "query",
		Source: "api",
	})
	require.NoError(t, err)
	assert.False(t, suppressed)
	assert.Equal(t, "what is the capital of France?", entry.Prompt)
	require.NotNil(t, entry.TokensUsed)
	assert.Greater(t, *entry.TokensUsed, 0)
}

func TestMemoryService_LogPromptEmpty(t *testing.T) {
	svc, _ := newMemoryService(t, 0)

	_, _, err := svc.LogPrompt(context.Background(), LogPromptInput{Prompt: "   \n\t "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestMemoryService_LogPromptDuplicateSuppressed(t *testing.T) {
	svc, mock := newMemoryService(t, 60)

	// Redis为nil时按时间窗查库判重
	mock.ExpectQuery(`SELECT count\(\*\) FROM "prompt_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entry, suppressed, err := svc.LogPrompt(context.Background(), LogPromptInput{Prompt: "repeat me"})
	require.NoError(t, err)
	assert.True(t, suppressed)
	assert.Nil(t, entry)
}

func TestMemoryService_RecentPrompts(t *testing.T) {
	svc, mock := newMemoryService(t, 0)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "prompt_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows([]string{"id", "prompt", "user_id", "tag", "source", "tokens_used", "created_at"}).
		AddRow(2, "second", nil, "query", "api", 3, time.Now()).
		AddRow(1, "first", nil, "query", "api", 2, time.Now().Add(-time.Minute))
	mock.ExpectQuery(`SELECT \* FROM "prompt_logs"`).
		WillReturnRows(rows)

	entries, total, err := svc.RecentPrompts(RecentFilter{Limit: 10, Tag: "query"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Prompt)
}

func TestMemoryService_PurgeBefore(t *testing.T) {
	svc, mock := newMemoryService(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "prompt_logs"`).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	removed, err := svc.PurgeBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(5), removed)
}

func TestExportNDJSON(t *testing.T) {
	entries := []models.PromptLog{
		{ID: 1, Prompt: "hello", Tag: "query", CreatedAt: time.Now()},
		{ID: 2, Prompt: "world", Tag: "train", CreatedAt: time.Now()},
	}

	out := ExportNDJSON(entries)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"prompt":"hello"`)
	assert.Contains(t, lines[1], `"tag":"train"`)
}
