package main

import (
	"os"

	"github.com/furnish-tech/reco-backend/internal/app"
	config "github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/logger"
)

//	@title			Furniture Recommendation API
//	@version		1.0
//	@description	Гибридный поиск и рекомендации товаров мебельного каталога
//	@host			localhost:8080
//	@BasePath		/api/v1

func main() {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		os.Exit(1)
	}
}
