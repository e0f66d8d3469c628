package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/internal/usecase"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Типы событий каталога.
const (
	EventProductUpserted = "product_upserted"
	EventProductRemoved  = "product_removed"
)

// CacheInvalidator сбрасывает кэш результатов после изменения каталога.
type CacheInvalidator interface {
	InvalidateCache()
}

// CatalogEvent — событие изменения каталога из Kafka.
// При upsert событие несёт свежие векторы товара.
type CatalogEvent struct {
	Type       string        `json:"type"`
	ProductID  string        `json:"product_id"`
	Embeddings []EventVector `json:"embeddings,omitempty"`
}

type EventVector struct {
	ID       string    `json:"id"`
	Modality string    `json:"modality"`
	Vector   []float32 `json:"vector"`
}

// CatalogConsumer подписан на поток изменений каталога: обновляет точки
// векторного индекса и сбрасывает кэш результатов, чтобы выдача
// не возвращала устаревших кандидатов.
type CatalogConsumer struct {
	reader      *kafka.Reader
	index       usecase.VectorIndex
	invalidator CacheInvalidator
	logger      logger.Logger
	wg          sync.WaitGroup
}

func NewCatalogConsumer(reader *kafka.Reader, index usecase.VectorIndex,
	invalidator CacheInvalidator, logger logger.Logger) *CatalogConsumer {
	return &CatalogConsumer{
		reader:      reader,
		index:       index,
		invalidator: invalidator,
		logger:      logger,
	}
}

func (c *CatalogConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop закрывает reader и дожидается завершения цикла чтения.
func (c *CatalogConsumer) Stop() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}

func (c *CatalogConsumer) run(ctx context.Context) {
	c.logger.Infof("catalog consumer started, topic: %s", c.reader.Config().Topic)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Infof("catalog consumer stopped")
				return
			}
			c.logger.Warnf("catalog consumer read failed: %v", err)
			return
		}

		if err := c.handleMessage(ctx, msg.Value); err != nil {
			c.logger.Warnf("catalog event skipped: %v", err)
		}
	}
}

// handleMessage применяет одно событие каталога к векторному индексу.
func (c *CatalogConsumer) handleMessage(ctx context.Context, value []byte) error {
	const op = "CatalogConsumer.handleMessage"

	var event CatalogEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return e.Wrap(op, err)
	}

	switch event.Type {
	case EventProductUpserted:
		embeddings := make([]domain.Embedding, 0, len(event.Embeddings))
		for _, v := range event.Embeddings {
			id := v.ID
			if id == "" {
				id = uuid.NewString()
			}
			embeddings = append(embeddings, *domain.NewEmbedding(
				id, event.ProductID, domain.Modality(v.Modality), v.Vector,
			))
		}

		if err := c.index.Upsert(ctx, embeddings); err != nil {
			return e.Wrap(op, err)
		}
	case EventProductRemoved:
		if err := c.index.Remove(ctx, event.ProductID); err != nil {
			return e.Wrap(op, err)
		}
	default:
		c.logger.Debugf("unknown catalog event type: %s", event.Type)
		return nil
	}

	c.invalidator.InvalidateCache()
	return nil
}
