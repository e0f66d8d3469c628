package domain

// Product описывает товар каталога. Запись неизменяема после загрузки каталога.
type Product struct {
	ID          string
	Title       string
	Brand       string
	Description string
	PriceCents  int64 // Цена хранится в центах
	Categories  []string
	ImageURL    string
	Material    *string
	Color       *string
	Dimensions  *string
}

func NewProduct(id, title, brand, description string, priceCents int64, categories []string, imageURL string) *Product {
	return &Product{
		ID:          id,
		Title:       title,
		Brand:       brand,
		Description: description,
		PriceCents:  priceCents,
		Categories:  categories,
		ImageURL:    imageURL,
	}
}

// SearchText возвращает текст товара, по которому работает реранкер.
func (p *Product) SearchText() string {
	if p.Description == "" {
		return p.Title
	}
	return p.Title + ". " + p.Description
}

