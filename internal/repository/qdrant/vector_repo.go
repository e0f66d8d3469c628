package qdrant

import (
	"context"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/pkg/clients"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const payloadProductID = "product_id"

// VectorRepo — удалённый бэкенд векторного индекса поверх Qdrant.
// Каждая модальность живёт в собственной коллекции со своей размерностью.
type VectorRepo struct {
	client *clients.QdrantClient
	cfg    *cfg.QdrantCfg
}

func NewVectorRepo(client *clients.QdrantClient, cfg *cfg.QdrantCfg) *VectorRepo {
	return &VectorRepo{
		client: client,
		cfg:    cfg,
	}
}

func (q *VectorRepo) Backend() string {
	return "qdrant"
}

// Search ищет ближайшие точки в коллекции модальности.
func (q *VectorRepo) Search(ctx context.Context, vector []float32, modality domain.Modality, topN uint64) ([]domain.ScoredPoint, error) {
	collection, err := q.collectionFor(modality, uint64(len(vector)))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	points, err := q.client.Client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &topN,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrIndexUnavailable))
	}

	result := make([]domain.ScoredPoint, 0, len(points))
	for _, p := range points {
		productID := p.Payload[payloadProductID].GetStringValue()
		if productID == "" {
			continue
		}
		result = append(result, domain.ScoredPoint{
			ProductID: productID,
			Score:     p.Score,
		})
	}

	return result, nil
}

// Upsert сохраняет или обновляет векторы в коллекциях соответствующих модальностей.
func (q *VectorRepo) Upsert(ctx context.Context, embeddings []domain.Embedding) error {
	byCollection := make(map[string][]*qdrant.PointStruct, 2)

	for _, emb := range embeddings {
		collection, err := q.collectionFor(emb.Modality, uint64(len(emb.Vector)))
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}

		byCollection[collection] = append(byCollection[collection], &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(emb.ID),
			Vectors: qdrant.NewVectors(emb.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{payloadProductID: emb.ProductID}),
		})
	}

	for collection, points := range byCollection {
		_, err := q.client.Client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrIndexUnavailable))
		}
	}

	return nil
}

// Remove удаляет все точки товара из обеих коллекций.
func (q *VectorRepo) Remove(ctx context.Context, productID string) error {
	collections := []string{q.client.TextCollection(), q.client.ImageCollection()}

	for _, collection := range collections {
		_, err := q.client.Client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collection,
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{
					qdrant.NewMatch(payloadProductID, productID),
				},
			}),
		})
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrIndexUnavailable))
		}
	}

	return nil
}

// collectionFor возвращает коллекцию модальности, проверяя размерность вектора.
func (q *VectorRepo) collectionFor(modality domain.Modality, dim uint64) (string, error) {
	switch modality {
	case domain.ModalityText:
		if dim != q.cfg.TextVectorSize {
			return "", e.ErrDimensionMismatch
		}
		return q.client.TextCollection(), nil
	case domain.ModalityImage:
		if dim != q.cfg.ImageVectorSize {
			return "", e.ErrDimensionMismatch
		}
		return q.client.ImageCollection(), nil
	default:
		return "", e.ErrUnknownModality
	}
}
