package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Basic(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	checker := NewHealthChecker(db, logger)
	assert.NotNil(t, checker)

	ctx := context.Background()
	err = checker.Check(ctx)
	assert.NoError(t, err)
	assert.True(t, checker.IsHealthy())

	result := checker.GetHealthResult()
	assert.True(t, result.Healthy)
	assert.Empty(t, result.LastError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_FailureAndRecovery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	checker := NewHealthChecker(db, logger)

	// ping失败
	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)

	ctx := context.Background()
	err = checker.Check(ctx)
	assert.Error(t, err)
	assert.False(t, checker.IsHealthy())

	result := checker.GetHealthResult()
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.LastError)

	// ping恢复
	mock.ExpectPing()

	err = checker.Check(ctx)
	assert.NoError(t, err)
	assert.True(t, checker.IsHealthy())

	assert.NoError(t, mock.ExpectationsWereMet())
}
