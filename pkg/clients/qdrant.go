package clients

import (
	"context"
	"fmt"

	config "github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *config.QdrantCfg
}

func NewQdrantClient(cfg *config.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

// TextCollection возвращает имя коллекции текстовых векторов.
func (c *QdrantClient) TextCollection() string {
	return c.cfg.CollectionPrefix + "_text"
}

// ImageCollection возвращает имя коллекции визуальных векторов.
func (c *QdrantClient) ImageCollection() string {
	return c.cfg.CollectionPrefix + "_image"
}

// EnsureCollections создаёт коллекции обеих модальностей, если их ещё нет.
// Размерности коллекций различаются, поэтому они не взаимозаменяемы.
func EnsureCollections(ctx context.Context, client *QdrantClient) error {
	collections := []struct {
		name string
		size uint64
	}{
		{client.TextCollection(), client.cfg.TextVectorSize},
		{client.ImageCollection(), client.cfg.ImageVectorSize},
	}

	for _, col := range collections {
		exists, err := client.Client.CollectionExists(ctx, col.name)
		if err != nil {
			return fmt.Errorf("failed to check collection %s existence: %w", col.name, err)
		}

		if !exists {
			if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: col.name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     col.size,
					Distance: qdrant.Distance_Cosine,
				}),
			}); err != nil {
				return fmt.Errorf("failed to create collection %s: %w", col.name, err)
			}
		}
	}

	return nil
}
