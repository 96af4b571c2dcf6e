package di

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/dig"
	"gorm.io/gorm"

	"github.com/brainzmonster/os/internal/agents"
	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/database"
	"github.com/brainzmonster/os/internal/engine"
	"github.com/brainzmonster/os/internal/services"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 数据库连接
	if err := container.Provide(func() (*gorm.DB, error) {
		if database.DB == nil {
			return nil, fmt.Errorf("database not initialized")
		}
		return database.DB, nil
	}); err != nil {
		return err
	}

	// Redis客户端，未启用时为nil
	if err := container.Provide(func() *redis.Client {
		return database.RedisClient
	}); err != nil {
		return err
	}

	// 推理引擎和底层客户端
	if err := container.Provide(func(cfg *config.Config) *engine.Engine {
		return engine.Boot(cfg.LLM)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(e *engine.Engine) *openai.Client {
		return e.Client()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(e *engine.Engine) *services.TokenCounter {
		return e.Counter()
	}); err != nil {
		return err
	}

	// 业务服务
	if err := container.Provide(services.NewUserService); err != nil {
		return err
	}
	if err := container.Provide(func(db *gorm.DB, rdb *redis.Client, counter *services.TokenCounter, cfg *config.Config) *services.MemoryService {
		return services.NewMemoryService(db, rdb, counter, cfg.LLM.DedupeWindowSec)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(client *openai.Client, memory *services.MemoryService, cfg *config.Config) *services.TrainingService {
		return services.NewTrainingService(client, memory, cfg.Train)
	}); err != nil {
		return err
	}
	if err := container.Provide(services.NewAnalyticsService); err != nil {
		return err
	}
	if err := container.Provide(services.NewSettingService); err != nil {
		return err
	}

	// 后台agent
	if err := container.Provide(func(analytics *services.AnalyticsService, training *services.TrainingService, cfg *config.Config) *agents.AutoTrainer {
		return agents.NewAutoTrainer(analytics, training, cfg.AutoTrain)
	}); err != nil {
		return err
	}

	return nil
}
