package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/beego/beego/v2/server/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/brainzmonster/os/internal/services"
)

func init() {
	web.BConfig.CopyRequestBody = true
	web.BConfig.RunMode = web.PROD

	web.Router("/api/user/create", &UserController{}, "post:Create")
	web.Router("/api/user/active", &UserController{}, "get:Active")
	web.Router("/", &RootController{}, "get:Index")
}

func setupMockServices(t *testing.T) sqlmock.Sqlmock {
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

	userService = services.NewUserService(gdb)
	return mock
}

func doRequest(method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	web.BeeApp.Handlers.ServeHTTP(w, req)
	return w
}

func TestRootIndex(t *testing.T) {
	w := doRequest(http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "brainz-os", payload["service"])
}

func TestUserCreate(t *testing.T) {
	mock := setupMockServices(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
		WithArgs("charlie", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	body, _ := json.Marshal(map[string]string{"username": "charlie"})
	w := doRequest(http.MethodPost, "/api/user/create", body)

	assert.Equal(t, http.StatusCreated, w.Code)

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Username string `json:"username"`
			ApiKey   string `json:"api_key"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, "charlie", payload.Data.Username)
	assert.Len(t, payload.Data.ApiKey, 64)
}

func TestUserCreateReservedUsername(t *testing.T) {
	setupMockServices(t)

	body, _ := json.Marshal(map[string]string{"username": "admin"})
	w := doRequest(http.MethodPost, "/api/user/create", body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUserCreateMissingBody(t *testing.T) {
	setupMockServices(t)

	w := doRequest(http.MethodPost, "/api/user/create", []byte(`{}`))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUserActive(t *testing.T) {
	mock := setupMockServices(t)

	rows := sqlmock.NewRows([]string{
		"id", "username", "api_key", "usage_count", "last_accessed",
		"is_active", "is_deleted", "created_at", "updated_at",
	}).AddRow(1, "alice", "k1", 4, nil, true, false, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE is_active = \$1 AND is_deleted = \$2`).
		WillReturnRows(rows)

	w := doRequest(http.MethodGet, "/api/user/active", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alice"`)
	assert.NotContains(t, w.Body.String(), "k1")
}
