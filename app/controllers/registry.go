package controllers

import (
	"github.com/brainzmonster/os/internal/agents"
	"github.com/brainzmonster/os/internal/database"
	"github.com/brainzmonster/os/internal/engine"
	"github.com/brainzmonster/os/internal/services"
)

// beego按请求反射创建控制器实例，服务依赖通过包级注册表共享
var (
	llmEngine        *engine.Engine
	userService      *services.UserService
	memoryService    *services.MemoryService
	trainingService  *services.TrainingService
	analyticsService *services.AnalyticsService
	settingService   *services.SettingService
	autoTrainer      *agents.AutoTrainer
	healthChecker    *database.HealthChecker
)

// Setup 注入控制器层用到的服务，启动时调用一次
func Setup(
	e *engine.Engine,
	users *services.UserService,
	memory *services.MemoryService,
	training *services.TrainingService,
	analytics *services.AnalyticsService,
	settings *services.SettingService,
	trainer *agents.AutoTrainer,
	health *database.HealthChecker,
) {
	llmEngine = e
	userService = users
	memoryService = memory
	trainingService = training
	analyticsService = analytics
	settingService = settings
	autoTrainer = trainer
	healthChecker = health
}
