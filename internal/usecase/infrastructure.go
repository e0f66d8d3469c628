package usecase

import "context"

// EmbeddingInfra — клиент провайдера эмбеддингов. Текстовое и визуальное
// пространства независимы и не смешиваются в одном вычислении схожести.
type EmbeddingInfra interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	Configured() bool
}

// RerankerInfra — парный кросс-энкодер: оценивает релевантность документов
// запросу. Порядок и длина результата совпадают с порядком документов.
type RerankerInfra interface {
	Score(ctx context.Context, query string, documents []string) ([]float32, error)
	Enabled() bool
}

// ImagesInfra разрешает ссылку на изображение запроса (ключ объекта
// или http-URL) в байты до отправки провайдеру эмбеддингов.
type ImagesInfra interface {
	FetchImage(ctx context.Context, ref string) ([]byte, error)
}
