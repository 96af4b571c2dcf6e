package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// MetricsCollector 数据库连接池指标收集器
type MetricsCollector struct {
	db              *sql.DB
	logger          *logrus.Logger
	collectInterval time.Duration

	dbConnectionsGauge *prometheus.GaugeVec
	dbErrorsCounter    *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector(db *sql.DB, logger *logrus.Logger) *MetricsCollector {
	mc := &MetricsCollector{
		db:              db,
		logger:          logger,
		collectInterval: 15 * time.Second,
	}

	mc.dbConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brainz_database_connections",
			Help: "Number of database connections in different states",
		},
		[]string{"state"},
	)
	mc.dbErrorsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brainz_database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation"},
	)

	return mc
}

// Start 开始收集连接池指标，ctx取消时退出
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting database metrics collection")

	go func() {
		ticker := time.NewTicker(mc.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.collectMetrics()
			}
		}
	}()
}

func (mc *MetricsCollector) collectMetrics() {
	stats := mc.db.Stats()

	mc.dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
	mc.dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
	mc.dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
	mc.dbConnectionsGauge.WithLabelValues("wait_count").Set(float64(stats.WaitCount))

	mc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
	}).Debug("Database connection pool stats collected")
}

// RecordError 记录数据库错误
func (mc *MetricsCollector) RecordError(operation string) {
	mc.dbErrorsCounter.WithLabelValues(operation).Inc()
}

// GetStats 获取当前连接池统计信息
func (mc *MetricsCollector) GetStats() sql.DBStats {
	return mc.db.Stats()
}
