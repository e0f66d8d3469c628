package usecase

import "github.com/furnish-tech/reco-backend/internal/domain"

// RECOMMEND USECASE

// RecommendReq — запрос рекомендаций. Хотя бы одно из полей Query/ImageRef
// должно быть заполнено.
type RecommendReq struct {
	Query    string
	ImageRef string // ключ объекта в хранилище или http(s)-URL
	K        int
	Page     int
	Size     int
	Filters  map[string]string
}

// RecommendRes — одна страница выдачи с метаданными поиска.
type RecommendRes struct {
	Products     []ProductInfo
	TotalFound   int
	TotalPages   int
	SearchTimeMs float64
	Reasons      []domain.Reason
	Query        string
}

// ProductInfo — DTO товара для внешнего использования.
type ProductInfo struct {
	ID          string
	Title       string
	Brand       string
	Description string
	PriceCents  int64
	Categories  []string
	ImageURL    string
	Material    *string
	Color       *string
	Dimensions  *string
}

// HEALTH / OBSERVABILITY

// CacheStats — счётчики кэша запросов для health-эндпоинта.
type CacheStats struct {
	Hits        uint64
	Misses      uint64
	CurrentSize int
	Capacity    int
}

// HealthInfo описывает состояние ядра: активный бэкенд индекса,
// доступность провайдеров и кэш.
type HealthInfo struct {
	IndexBackend       string
	EmbedderConfigured bool
	RerankerEnabled    bool
	Cache              CacheStats
}

// MAPPERS

func NewRecommendReq(query, imageRef string, k, page, size int, filters map[string]string) *RecommendReq {
	return &RecommendReq{
		Query:    query,
		ImageRef: imageRef,
		K:        k,
		Page:     page,
		Size:     size,
		Filters:  filters,
	}
}

func NewRecommendRes(products []ProductInfo, totalFound, totalPages int, searchTimeMs float64, reasons []domain.Reason, query string) *RecommendRes {
	return &RecommendRes{
		Products:     products,
		TotalFound:   totalFound,
		TotalPages:   totalPages,
		SearchTimeMs: searchTimeMs,
		Reasons:      reasons,
		Query:        query,
	}
}

func NewProductInfo(p *domain.Product) ProductInfo {
	return ProductInfo{
		ID:          p.ID,
		Title:       p.Title,
		Brand:       p.Brand,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Categories:  p.Categories,
		ImageURL:    p.ImageURL,
		Material:    p.Material,
		Color:       p.Color,
		Dimensions:  p.Dimensions,
	}
}

func NewHealthInfo(backend string, embedderConfigured, rerankerEnabled bool, cache CacheStats) *HealthInfo {
	return &HealthInfo{
		IndexBackend:       backend,
		EmbedderConfigured: embedderConfigured,
		RerankerEnabled:    rerankerEnabled,
		Cache:              cache,
	}
}
