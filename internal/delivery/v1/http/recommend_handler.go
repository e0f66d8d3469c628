package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/furnish-tech/reco-backend/internal/usecase"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
)

type RecommendHandler struct {
	recommendUsecase usecase.RecommendUC
	logger           logger.Logger
}

func NewRecommendHandler(recommendUsecase usecase.RecommendUC, logger logger.Logger) *RecommendHandler {
	return &RecommendHandler{recommendUsecase: recommendUsecase, logger: logger}
}

// RecommendRequest — тело запроса рекомендаций.
// user_image_url — ключ загруженного объекта или внешний http(s)-URL.
type RecommendRequest struct {
	Query        string            `json:"query"`
	UserImageURL string            `json:"user_image_url"`
	K            int               `json:"k"`
	Page         int               `json:"page"`
	Size         int               `json:"size"`
	Filters      map[string]string `json:"filters"`
}

// RecommendResponse — страница выдачи.
type RecommendResponse struct {
	Products     []ProductResponse `json:"products"`
	TotalFound   int               `json:"total_found"`
	TotalPages   int               `json:"total_pages"`
	SearchTimeMs float64           `json:"search_time_ms"`
	Reasons      []string          `json:"reasons"`
	Query        string            `json:"query"`
}

type ProductResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Brand       string   `json:"brand"`
	Description string   `json:"description,omitempty"`
	Price       string   `json:"price"`
	Categories  []string `json:"categories"`
	ImageURL    string   `json:"image_url,omitempty"`
	Material    *string  `json:"material,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Dimensions  *string  `json:"dimensions,omitempty"`
}

// recommend
//
//	@Summary		Гибридные рекомендации товаров
//	@Description	Подбирает товары по тексту запроса и/или изображению с фильтрами и пагинацией
//	@Tags			recommendations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecommendRequest	true	"Параметры поиска"
//	@Success		200		{object}	RecommendResponse	"Страница выдачи"
//	@Failure		400		{object}	ErrorResponse		"Ошибка валидации"
//	@Failure		503		{object}	ErrorResponse		"Индекс или провайдер эмбеддингов недоступен"
//	@Router			/recommend [post]
func (h *RecommendHandler) recommend(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 1 << 20

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		h.logger.Warnf("%d %s: %s", http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error(), ct)
		WriteError(w, e.ErrUnsupportedMediaType)
		return
	}

	var body RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrInvalidRequest.Error(), err.Error())
		WriteError(w, e.ErrInvalidRequest)
		return
	}

	req := usecase.NewRecommendReq(body.Query, body.UserImageURL, body.K, body.Page, body.Size, body.Filters)

	res, err := h.recommendUsecase.Recommend(r.Context(), req)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toRecommendResponse(res))
}

// invalidateCache
//
//	@Summary		Сброс кэша результатов
//	@Description	Очищает кэш рекомендаций, следующие запросы будут посчитаны заново
//	@Tags			recommendations
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}	"Кэш очищен"
//	@Router			/cache/invalidate [post]
func (h *RecommendHandler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	h.recommendUsecase.InvalidateCache()

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"invalidated": true,
	})
}

func toRecommendResponse(res *usecase.RecommendRes) *RecommendResponse {
	products := make([]ProductResponse, 0, len(res.Products))
	for _, p := range res.Products {
		products = append(products, ProductResponse{
			ID:          p.ID,
			Title:       p.Title,
			Brand:       p.Brand,
			Description: p.Description,
			Price:       renderPrice(p.PriceCents),
			Categories:  p.Categories,
			ImageURL:    p.ImageURL,
			Material:    p.Material,
			Color:       p.Color,
			Dimensions:  p.Dimensions,
		})
	}

	reasons := make([]string, 0, len(res.Reasons))
	for _, reason := range res.Reasons {
		reasons = append(reasons, reason.Render())
	}

	return &RecommendResponse{
		Products:     products,
		TotalFound:   res.TotalFound,
		TotalPages:   res.TotalPages,
		SearchTimeMs: res.SearchTimeMs,
		Reasons:      reasons,
		Query:        res.Query,
	}
}
