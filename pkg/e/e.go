package e

import "fmt"

var (
	// Ошибки валидации запроса рекомендаций (400)
	ErrInvalidRequest  = fmt.Errorf("invalid request")
	ErrEmptyQuery      = fmt.Errorf("query text or query image is required")
	ErrQueryTooLong    = fmt.Errorf("query text exceeds maximum length")
	ErrInvalidPage     = fmt.Errorf("page must be >= 1")
	ErrInvalidPageSize = fmt.Errorf("page size is out of bounds")
	ErrInvalidPrice    = fmt.Errorf("invalid price filter value")

	// Ошибки пайплайна поиска
	ErrEmbeddingFailure      = fmt.Errorf("embedding provider failure")
	ErrEmbedderNotConfigured = fmt.Errorf("no embedding model configured")
	ErrIndexUnavailable      = fmt.Errorf("vector index unavailable")
	ErrRerankerFailure       = fmt.Errorf("reranker failure")
	ErrDimensionMismatch     = fmt.Errorf("vector dimension mismatch")

	// Внутренние ошибки с векторами и каталогом
	ErrEmptyVector     = fmt.Errorf("vector embedding is empty")
	ErrUnknownModality = fmt.Errorf("unknown embedding modality")
	ErrEmptyCatalog    = fmt.Errorf("product catalog is empty")

	// Ошибки доступа к изображению запроса
	ErrImageUnavailable     = fmt.Errorf("query image unavailable")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")

	// HTTP
	ErrStatusBadRequest    = fmt.Errorf("bad request")
	ErrInternalServerError = fmt.Errorf("internal server error")

	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
