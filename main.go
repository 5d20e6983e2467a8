// @title Exam Paper Backend API
// @version 1.0
// @description Exam-paper lifecycle, versioning and approval workflow service.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"log"

	"exam_paper_backend/internal/app"
	"exam_paper_backend/internal/config"
	"exam_paper_backend/pkg/configwatcher"
	"exam_paper_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	go configwatcher.WatchConfig("configs/config.yaml", application.ReloadConfig)

	application.Run()
}
