package agents

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/services"
)

func newTrainer(t *testing.T, cfg config.AutoTrainConfig) (*AutoTrainer, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	analytics := services.NewAnalyticsService(gdb, nil)
	memory := services.NewMemoryService(gdb, nil, services.NewTokenCounter("gpt-3.5-turbo"), 0)
	training := services.NewTrainingService(nil, memory, config.TrainConfig{Model: "gpt-3.5-turbo"})

	return NewAutoTrainer(analytics, training, cfg), mock
}

func TestAutoTrainer_RunOnceSkipsWhenBelowMinimum(t *testing.T) {
	trainer, mock := newTrainer(t, config.AutoTrainConfig{MinSamples: 10, DryRun: true})

	rows := sqlmock.NewRows([]string{"prompt", "count"}).
		AddRow("popular prompt", 12).
		AddRow("rare prompt", 3)
	mock.ExpectQuery(`SELECT prompt AS prompt, COUNT\(\*\) AS count FROM "prompt_logs"`).
		WillReturnRows(rows)

	result := trainer.RunOnce(context.Background())

	assert.Equal(t, "skipped", result.Status)
	assert.Equal(t, 1, result.Qualified)
	assert.Equal(t, 0, result.Trained)
}

func TestAutoTrainer_RunOnceDryRun(t *testing.T) {
	trainer, mock := newTrainer(t, config.AutoTrainConfig{MinSamples: 1, DryRun: true})

	rows := sqlmock.NewRows([]string{"prompt", "count"}).
		AddRow("a frequently used prompt", 27)
	mock.ExpectQuery(`SELECT prompt AS prompt, COUNT\(\*\) AS count FROM "prompt_logs"`).
		WillReturnRows(rows)

	// dry-run仍然把样本写入记忆层
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "prompt_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	result := trainer.RunOnce(context.Background())

	assert.Equal(t, "dry-run", result.Status)
	assert.Equal(t, 1, result.Qualified)
	assert.Equal(t, 0, result.Trained)
	assert.NotNil(t, trainer.LastRun())
}

func TestAutoTrainer_Preview(t *testing.T) {
	trainer, mock := newTrainer(t, config.AutoTrainConfig{MinSamples: 1})

	rows := sqlmock.NewRows([]string{"prompt", "count"}).
		AddRow("popular prompt", 15).
		AddRow("one-off prompt", 4)
	mock.ExpectQuery(`SELECT prompt AS prompt, COUNT\(\*\) AS count FROM "prompt_logs" WHERE tag <> \$1`).
		WithArgs(autotrainTag).
		WillReturnRows(rows)

	texts, err := trainer.Preview()
	require.NoError(t, err)
	assert.Equal(t, []string{"popular prompt"}, texts)
}
