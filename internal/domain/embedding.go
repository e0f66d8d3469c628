package domain

// Modality определяет пространство эмбеддингов. Векторы разных модальностей
// несравнимы между собой.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
)

// Embedding представляет вектор одного товара в одной модальности.
type Embedding struct {
	ID        string // uuid точки в векторном индексе
	ProductID string
	Modality  Modality
	Vector    []float32
}

func NewEmbedding(id, productID string, modality Modality, vector []float32) *Embedding {
	return &Embedding{
		ID:        id,
		ProductID: productID,
		Modality:  modality,
		Vector:    vector,
	}
}

// ScoredPoint — результат поиска в векторном индексе: товар и его схожесть.
// Больший score означает большую схожесть.
type ScoredPoint struct {
	ProductID string
	Score     float32
}
