package bootstrap

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/app/controllers"
	appMiddleware "github.com/brainzmonster/os/app/middleware"
	"github.com/brainzmonster/os/internal/agents"
	"github.com/brainzmonster/os/internal/auth"
	"github.com/brainzmonster/os/internal/config"
	"github.com/brainzmonster/os/internal/database"
	"github.com/brainzmonster/os/internal/di"
	"github.com/brainzmonster/os/internal/engine"
	"github.com/brainzmonster/os/internal/logger"
	"github.com/brainzmonster/os/internal/services"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	engine      *engine.Engine
	autoTrainer *agents.AutoTrainer
	cancelCtx   context.CancelFunc
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	env := os.Getenv("BRAINZ_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize structured logger.
	if err := logger.InitLogger(env); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	config.WatchConfig(func(*config.Config) {
		logger.Info("configuration file changed, reloaded")
	})

	app := &App{}
	ctx, cancel := context.WithCancel(context.Background())
	app.cancelCtx = cancel

	// Initialize database.
	if _, err := database.InitDB(); err != nil {
		cancel()
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)

	// Initialize Redis (optional). Failure shouldn't block the app.
	if _, err := database.InitRedis(); err != nil {
		logger.Warn("Failed to initialize Redis", zap.Error(err))
	} else if database.RedisClient != nil {
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	}

	cfg := config.GetAppConfig()

	// Seed users and defaults on first boot.
	database.SeedOnBoot(database.DB)

	// Wire the service graph through the DI container.
	container := di.InitContainer()
	if err := di.RegisterProviders(container); err != nil {
		cancel()
		return nil, err
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, "brainz-os", 24*time.Hour)

	err := container.Invoke(func(
		e *engine.Engine,
		users *services.UserService,
		memory *services.MemoryService,
		training *services.TrainingService,
		analytics *services.AnalyticsService,
		settings *services.SettingService,
		trainer *agents.AutoTrainer,
	) {
		app.engine = e
		app.autoTrainer = trainer

		var healthChecker *database.HealthChecker
		if sqlDB, dbErr := database.DB.DB(); dbErr == nil {
			opsLogger := logrus.New()
			opsLogger.SetFormatter(&logrus.JSONFormatter{})

			healthChecker = database.NewHealthChecker(sqlDB, opsLogger)
			healthChecker.Start(ctx)

			metricsCollector := database.NewMetricsCollector(sqlDB, opsLogger)
			metricsCollector.Start(ctx)
		}

		controllers.Setup(e, users, memory, training, analytics, settings, trainer, healthChecker)
		appMiddleware.Setup(users, jwtService)
	})
	if err != nil {
		cancel()
		return nil, err
	}

	// Warm up the hosted model in the background.
	if cfg.LLM.WarmupOnBoot && app.engine.Ready() {
		go func() {
			warmCtx, warmCancel := context.WithTimeout(ctx, 60*time.Second)
			defer warmCancel()
			app.engine.Warmup(warmCtx)
		}()
	}

	// Periodic retraining from accumulated prompts.
	app.autoTrainer.Start(ctx)

	// Beego needs the raw request body available for JSON handlers.
	web.BConfig.CopyRequestBody = true
	web.BConfig.RunMode = env
	if port, convErr := strconv.Atoi(cfg.Server.Port); convErr == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	globalApp = app
	logger.Info("✅ Application bootstrap complete",
		zap.String("port", cfg.Server.Port),
		zap.String("env", env))
	return app, nil
}

// Shutdown runs all registered cleanup steps in reverse order.
func (a *App) Shutdown() {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}
	if a.autoTrainer != nil {
		a.autoTrainer.Stop()
	}
	if a.engine != nil {
		a.engine.Shutdown()
	}

	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Error("cleanup task failed", zap.Error(err))
		}
	}
	logger.Sync()
}
