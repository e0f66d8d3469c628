package http

import (
	"net/http"

	"github.com/furnish-tech/reco-backend/internal/usecase"
	"github.com/furnish-tech/reco-backend/pkg/logger"
)

type HealthHandler struct {
	recommendUsecase usecase.RecommendUC
	logger           logger.Logger
}

func NewHealthHandler(recommendUsecase usecase.RecommendUC, logger logger.Logger) *HealthHandler {
	return &HealthHandler{recommendUsecase: recommendUsecase, logger: logger}
}

// HealthResponse — состояние сервиса.
type HealthResponse struct {
	Status       string             `json:"status"`
	IndexBackend string             `json:"index_backend"`
	Embedder     string             `json:"embedder"`
	Reranker     string             `json:"reranker"`
	Cache        CacheStatsResponse `json:"cache"`
}

type CacheStatsResponse struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	CurrentSize int    `json:"current_size"`
	Capacity    int    `json:"capacity"`
}

// health
//
//	@Summary		Состояние сервиса
//	@Description	Возвращает активный бэкенд векторного индекса и счётчики кэша
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"Сервис работает"
//	@Router			/health [get]
func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	info := h.recommendUsecase.Health()

	// Без провайдера эмбеддингов сервис не может искать вовсе; без
	// реранкера — работает в деградированном режиме на ANN-порядке
	status := "healthy"
	if !info.RerankerEnabled {
		status = "degraded"
	}
	if !info.EmbedderConfigured {
		status = "unhealthy"
	}

	WriteSuccess(w, http.StatusOK, &HealthResponse{
		Status:       status,
		IndexBackend: info.IndexBackend,
		Embedder:     configuredLabel(info.EmbedderConfigured),
		Reranker:     configuredLabel(info.RerankerEnabled),
		Cache: CacheStatsResponse{
			Hits:        info.Cache.Hits,
			Misses:      info.Cache.Misses,
			CurrentSize: info.Cache.CurrentSize,
			Capacity:    info.Cache.Capacity,
		},
	})
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_configured"
}
