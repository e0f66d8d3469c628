package pgdb

import (
	"context"

	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/internal/repository/pgdb/converter"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует репозиторий каталога поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// LoadCatalog читает весь каталог в порядке загрузки. Порядок важен:
// он используется как детерминированный tie-break при равных score.
func (p *ProductRepo) LoadCatalog(ctx context.Context) ([]domain.Product, error) {
	query := `
		SELECT id, title, brand, description, price_cents, categories,
			image_url, material, color, dimensions, created_at, updated_at
		FROM products
		ORDER BY created_at, id
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		var model converter.ProductModel
		if err := rows.Scan(
			&model.ID, &model.Title, &model.Brand, &model.Description,
			&model.PriceCents, &model.Categories, &model.ImageURL,
			&model.Material, &model.Color, &model.Dimensions,
			&model.CreatedAt, &model.UpdatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, *p.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if len(result) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrEmptyCatalog)
	}

	return result, nil
}
