package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/beego/beego/v2/server/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/brainzmonster/os/internal/agents"
	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/services"
)

func init() {
	web.Router("/api/system/autotrain", &TrainController{}, "get:AutotrainStatus")
	web.Router("/api/system/autotrain/preview", &TrainController{}, "get:AutotrainPreview")
}

func setupAutoTrainer(t *testing.T) sqlmock.Sqlmock {
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
	training := services.NewTrainingService(nil, nil, config.TrainConfig{Model: "gpt-3.5-turbo"})
	autoTrainer = agents.NewAutoTrainer(analytics, training, config.AutoTrainConfig{MinSamples: 1})
	t.Cleanup(func() { autoTrainer = nil })

	return mock
}

func TestAutotrainStatusUnconfigured(t *testing.T) {
	autoTrainer = nil

	w := doRequest(http.MethodGet, "/api/system/autotrain", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAutotrainStatus(t *testing.T) {
	setupAutoTrainer(t)

	w := doRequest(http.MethodGet, "/api/system/autotrain", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			LastRun *json.RawMessage `json:"last_run"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
}

func TestAutotrainPreview(t *testing.T) {
	mock := setupAutoTrainer(t)

	rows := sqlmock.NewRows([]string{"prompt", "count"}).
		AddRow("popular prompt", 15)
	mock.ExpectQuery(`SELECT prompt AS prompt, COUNT\(\*\) AS count FROM "prompt_logs"`).
		WillReturnRows(rows)

	w := doRequest(http.MethodGet, "/api/system/autotrain/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Candidates []string `json:"candidates"`
			Count      int      `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"popular prompt"}, body.Data.Candidates)
	assert.Equal(t, 1, body.Data.Count)
}
