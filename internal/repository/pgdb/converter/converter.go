package converter

import "github.com/furnish-tech/reco-backend/internal/domain"

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
type ProductConverter interface {
	ToEntity(model *ProductModel) *domain.Product
}

// EmbeddingConverter преобразует сохранённые векторы каталога в domain.
type EmbeddingConverter interface {
	ToEntity(model *ProductVectorModel) *domain.Embedding
}

type productConverter struct{}

func NewProductConverter() ProductConverter {
	return productConverter{}
}

func (productConverter) ToEntity(model *ProductModel) *domain.Product {
	return &domain.Product{
		ID:          model.ID,
		Title:       model.Title,
		Brand:       model.Brand,
		Description: model.Description,
		PriceCents:  model.PriceCents,
		Categories:  model.Categories,
		ImageURL:    model.ImageURL,
		Material:    model.Material,
		Color:       model.Color,
		Dimensions:  model.Dimensions,
	}
}

type embeddingConverter struct{}

func NewEmbeddingConverter() EmbeddingConverter {
	return embeddingConverter{}
}

func (embeddingConverter) ToEntity(model *ProductVectorModel) *domain.Embedding {
	return domain.NewEmbedding(model.ID, model.ProductID, domain.Modality(model.Modality), model.Vector)
}
