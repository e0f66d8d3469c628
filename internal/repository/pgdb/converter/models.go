package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL.
type ProductModel struct {
	ID          string     `db:"id"`
	Title       string     `db:"title"`
	Brand       string     `db:"brand"`
	Description string     `db:"description"`
	PriceCents  int64      `db:"price_cents"`
	Categories  []string   `db:"categories"`
	ImageURL    string     `db:"image_url"`
	Material    *string    `db:"material"`
	Color       *string    `db:"color"`
	Dimensions  *string    `db:"dimensions"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// ProductVectorModel представляет запись таблицы product_vectors в PostgreSQL.
type ProductVectorModel struct {
	ID        string    `db:"id"`
	ProductID string    `db:"product_id"`
	Modality  string    `db:"modality"`
	Vector    []float32 `db:"vector"`
	CreatedAt time.Time `db:"created_at"`
}
