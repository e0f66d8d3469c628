package domain

// Catalog — неизменяемое отображение id → товар, загруженное при старте.
// Порядок вставки сохраняется: он служит стабильным критерием при равных score.
type Catalog struct {
	byID     map[string]*Product
	position map[string]int
	order    []string
}

func NewCatalog(products []Product) *Catalog {
	c := &Catalog{
		byID:     make(map[string]*Product, len(products)),
		position: make(map[string]int, len(products)),
		order:    make([]string, 0, len(products)),
	}

	for i := range products {
		p := products[i]
		if _, ok := c.byID[p.ID]; ok {
			continue // дубликат id игнорируется, первая запись выигрывает
		}
		c.byID[p.ID] = &p
		c.position[p.ID] = len(c.order)
		c.order = append(c.order, p.ID)
	}

	return c
}

// Get возвращает товар по id.
func (c *Catalog) Get(id string) (*Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Position возвращает позицию товара в порядке загрузки каталога.
// Для неизвестного id возвращается позиция за концом каталога.
func (c *Catalog) Position(id string) int {
	if pos, ok := c.position[id]; ok {
		return pos
	}
	return len(c.order)
}

func (c *Catalog) Len() int {
	return len(c.byID)
}
