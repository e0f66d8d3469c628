package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/clients"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/jimlawless/whereami"
)

// EmbeddingCache мемоизирует векторы текстовых запросов в Redis.
// Любой сбой Redis трактуется как промах и лишь логируется: кэш
// ускоряет пайплайн, но не участвует в его корректности.
type EmbeddingCache struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewEmbeddingCache(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *EmbeddingCache {
	return &EmbeddingCache{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetVector возвращает закэшированный вектор запроса, игнорируя промахи.
func (r *EmbeddingCache) GetVector(ctx context.Context, key string) ([]float32, bool) {
	data, err := r.client.Client.Get(ctx, r.embeddingKey(key)).Bytes()
	if err != nil {
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		r.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, false
	}

	if len(vector) == 0 {
		return nil, false
	}

	return vector, true
}

// SetVector кэширует вектор запроса с TTL. Ошибки записи логируются и глотаются.
func (r *EmbeddingCache) SetVector(ctx context.Context, key string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		r.logger.Warnf("Failed to marshal embedding for caching: %v", e.Wrap(whereami.WhereAmI(), err))
		return
	}

	if err := r.client.Client.Set(ctx, r.embeddingKey(key), data, r.cfg.EmbeddingTTL).Err(); err != nil {
		r.logger.Warnf("Redis SET failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}
}

// embeddingKey формирует Redis-ключ из текста запроса.
// Текст хэшируется: запросы бывают длинными и с произвольными символами.
func (r *EmbeddingCache) embeddingKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("embedding:text:%s", hex.EncodeToString(sum[:]))
}
