package usecase

import (
	"context"

	"github.com/furnish-tech/reco-backend/internal/domain"
)

// VectorIndex — единый контракт векторного индекса. За ним стоят два
// взаимозаменяемых бэкенда: удалённый Qdrant и локальный in-process индекс.
// Выбор бэкенда происходит один раз при старте приложения.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, modality domain.Modality, topN uint64) ([]domain.ScoredPoint, error)
	Upsert(ctx context.Context, embeddings []domain.Embedding) error
	Remove(ctx context.Context, productID string) error
	Backend() string
}

// QueryCache — ограниченный LRU-кэш полных (до пагинации) списков кандидатов
// по отпечатку нормализованного запроса.
type QueryCache interface {
	Get(fingerprint string) ([]domain.Candidate, bool)
	Put(fingerprint string, candidates []domain.Candidate)
	Stats() CacheStats
	InvalidateAll()
}

type CatalogRepository interface {
	LoadCatalog(ctx context.Context) ([]domain.Product, error)
}

// StoredEmbeddingRepository отдаёт сохранённые векторы каталога
// для прогрева локального бэкенда векторного индекса.
type StoredEmbeddingRepository interface {
	LoadEmbeddings(ctx context.Context) ([]domain.Embedding, error)
}

// EmbeddingCache мемоизирует векторы текстовых запросов.
// Сбой кэша равносилен промаху и не является ошибкой домена.
type EmbeddingCache interface {
	GetVector(ctx context.Context, key string) ([]float32, bool)
	SetVector(ctx context.Context, key string, vector []float32)
}
