package router

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brainzmonster/os/app/controllers"
	"github.com/brainzmonster/os/app/middleware"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.RootController{}, "get:Health")
	web.Handler("/metrics", promhttp.Handler())

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)

	// 推理和训练接口需要API Key
	web.InsertFilter("/api/llm/*", web.BeforeRouter, middleware.APIKeyAuth)
	web.InsertFilter("/api/system/*", web.BeforeRouter, middleware.APIKeyAuth)

	llmController := &controllers.LLMController{}
	web.Router("/api/llm/query", llmController, "post:Query")
	web.Router("/api/llm/query/stream", llmController, "post:Stream")

	trainController := &controllers.TrainController{}
	web.Router("/api/llm/train", trainController, "post:Train")
	web.Router("/api/llm/train/estimate", trainController, "post:Estimate")
	web.Router("/api/system/autotrain", trainController, "get:AutotrainStatus")
	web.Router("/api/system/autotrain/preview", trainController, "get:AutotrainPreview")

	// 日志删除和配置写入是管理员操作，额外叠加JWT校验
	adminMutations := func(ctx *beecontext.Context) {
		if ctx.Input.Method() != http.MethodGet {
			middleware.AdminJWTAuth(ctx)
		}
	}
	web.InsertFilter("/api/system/logs", web.BeforeRouter, adminMutations)
	web.InsertFilter("/api/system/settings", web.BeforeRouter, adminMutations)

	logsController := &controllers.LogsController{}
	web.Router("/api/system/logs", logsController, "get:List;delete:Purge")
	web.Router("/api/system/logs/stats", logsController, "get:Stats")
	web.Router("/api/system/logs/common", logsController, "get:Common")
	web.Router("/api/system/logs/trend", logsController, "get:Trend")
	web.Router("/api/system/logs/tech", logsController, "get:Tech")

	settingController := &controllers.SettingController{}
	web.Router("/api/system/settings", settingController, "get:List;put:Set")

	// 注册接口开放，换发key需要API Key
	userController := &controllers.UserController{}
	web.Router("/api/user/create", userController, "post:Create")
	web.Router("/api/user/active", userController, "get:Active")
	web.InsertFilter("/api/user/regenerate", web.BeforeRouter, middleware.APIKeyAuth)
	web.Router("/api/user/regenerate", userController, "post:Regenerate")
}
