package http

import (
	_ "github.com/furnish-tech/reco-backend/docs" // Импорт сгенерированных файлов
	"github.com/furnish-tech/reco-backend/internal/usecase"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(recUC usecase.RecommendUC) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	healthHandler := NewHealthHandler(recUC, r.logger)
	r.router.Get("/health", healthHandler.health)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		recHandler := NewRecommendHandler(recUC, r.logger)
		registerRecommendRoutes(v1, recHandler)
	})
}

func registerRecommendRoutes(router chi.Router, recHandler *RecommendHandler) {
	router.Post("/recommend", recHandler.recommend)
	router.Post("/cache/invalidate", recHandler.invalidateCache)
}
