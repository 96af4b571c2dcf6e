package main

import (
	"log"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/brainzmonster/os/app/bootstrap"
	"github.com/brainzmonster/os/app/router"
	"github.com/brainzmonster/os/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "brainz-os"

	logger.Info("🚀 Starting brainz-os", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
