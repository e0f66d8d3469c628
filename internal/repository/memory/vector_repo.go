package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/jimlawless/whereami"
)

// VectorRepo — локальный in-process бэкенд векторного индекса.
// Используется, когда удалённый Qdrant не сконфигурирован или недоступен
// на старте; прогревается векторами каталога из PostgreSQL.
type VectorRepo struct {
	mu sync.RWMutex
	// отдельное пространство точек на каждую модальность
	spaces map[domain.Modality]*space
	dims   map[domain.Modality]uint64
}

type space struct {
	entries []entry
	byID    map[string]int // productID -> индекс в entries
}

type entry struct {
	productID string
	vector    []float32
	norm      float64
}

func NewVectorRepo(cfg *cfg.QdrantCfg) *VectorRepo {
	return &VectorRepo{
		spaces: map[domain.Modality]*space{
			domain.ModalityText:  {byID: make(map[string]int)},
			domain.ModalityImage: {byID: make(map[string]int)},
		},
		dims: map[domain.Modality]uint64{
			domain.ModalityText:  cfg.TextVectorSize,
			domain.ModalityImage: cfg.ImageVectorSize,
		},
	}
}

func (m *VectorRepo) Backend() string {
	return "local"
}

// Search возвращает topN точек по косинусной близости к запросу.
// Равные score упорядочиваются по порядку вставки, поэтому результат
// детерминирован между вызовами.
func (m *VectorRepo) Search(ctx context.Context, vector []float32, modality domain.Modality, topN uint64) ([]domain.ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrEmptyVector)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sp, dim, err := m.spaceFor(modality)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if uint64(len(vector)) != dim {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrDimensionMismatch)
	}

	queryNorm := vectorNorm(vector)
	if queryNorm == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrEmptyVector)
	}

	type scored struct {
		point domain.ScoredPoint
		order int
	}

	results := make([]scored, 0, len(sp.entries))
	for i, ent := range sp.entries {
		if ent.norm == 0 {
			continue
		}
		sim := dot(vector, ent.vector) / (queryNorm * ent.norm)
		results = append(results, scored{
			point: domain.ScoredPoint{ProductID: ent.productID, Score: float32(sim)},
			order: i,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].point.Score != results[j].point.Score {
			return results[i].point.Score > results[j].point.Score
		}
		return results[i].order < results[j].order
	})

	if uint64(len(results)) > topN {
		results = results[:topN]
	}

	points := make([]domain.ScoredPoint, len(results))
	for i, r := range results {
		points[i] = r.point
	}

	return points, nil
}

// Upsert добавляет или заменяет векторы товаров. Вектор копируется,
// чтобы вызывающая сторона не могла изменить содержимое индекса.
func (m *VectorRepo) Upsert(ctx context.Context, embeddings []domain.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, emb := range embeddings {
		sp, dim, err := m.spaceFor(emb.Modality)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		if uint64(len(emb.Vector)) != dim {
			return e.Wrap(whereami.WhereAmI(), e.ErrDimensionMismatch)
		}

		vector := append([]float32(nil), emb.Vector...)
		ent := entry{
			productID: emb.ProductID,
			vector:    vector,
			norm:      vectorNorm(vector),
		}

		if idx, ok := sp.byID[emb.ProductID]; ok {
			sp.entries[idx] = ent
			continue
		}

		sp.byID[emb.ProductID] = len(sp.entries)
		sp.entries = append(sp.entries, ent)
	}

	return nil
}

// Remove удаляет точки товара из обеих модальностей. Отсутствие точки не ошибка.
func (m *VectorRepo) Remove(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sp := range m.spaces {
		idx, ok := sp.byID[productID]
		if !ok {
			continue
		}

		// Сдвиг хвоста сохраняет порядок вставки оставшихся точек
		sp.entries = append(sp.entries[:idx], sp.entries[idx+1:]...)
		delete(sp.byID, productID)
		for id, i := range sp.byID {
			if i > idx {
				sp.byID[id] = i - 1
			}
		}
	}

	return nil
}

func (m *VectorRepo) spaceFor(modality domain.Modality) (*space, uint64, error) {
	sp, ok := m.spaces[modality]
	if !ok {
		return nil, 0, e.ErrUnknownModality
	}

	return sp, m.dims[modality], nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
