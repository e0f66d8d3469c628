package pgdb

import (
	"context"

	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/internal/repository/pgdb/converter"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// EmbeddingRepo читает сохранённые векторы каталога из PostgreSQL.
// Используется для прогрева локального бэкенда векторного индекса.
type EmbeddingRepo struct {
	pool *pgxpool.Pool
	conv converter.EmbeddingConverter
}

func NewEmbeddingRepo(pool *pgxpool.Pool, conv converter.EmbeddingConverter) *EmbeddingRepo {
	return &EmbeddingRepo{
		pool: pool,
		conv: conv,
	}
}

// LoadEmbeddings возвращает все векторы каталога обеих модальностей.
func (p *EmbeddingRepo) LoadEmbeddings(ctx context.Context) ([]domain.Embedding, error) {
	query := `
		SELECT id, product_id, modality, vector, created_at
		FROM product_vectors
		ORDER BY created_at, id
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Embedding, 0)
	for rows.Next() {
		var model converter.ProductVectorModel
		if err := rows.Scan(
			&model.ID, &model.ProductID, &model.Modality, &model.Vector, &model.CreatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *p.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
