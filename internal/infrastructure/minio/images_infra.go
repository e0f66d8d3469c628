package minio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
)

// ObjectDownloader — контракт хранилища загруженных изображений.
type ObjectDownloader interface {
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// максимальный размер изображения запроса
const maxImageBytes = 10 << 20

// ImagesInfrastructure разрешает ссылку изображения запроса в байты.
// Ссылка — либо ключ объекта в MinIO (загрузка пользователя),
// либо внешний http(s)-URL.
type ImagesInfrastructure struct {
	repo       ObjectDownloader
	httpClient *http.Client
	logger     logger.Logger
}

func NewImagesInfrastructure(repo ObjectDownloader, logger logger.Logger) *ImagesInfrastructure {
	return &ImagesInfrastructure{
		repo:       repo,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// FetchImage возвращает содержимое изображения по ссылке.
func (m *ImagesInfrastructure) FetchImage(ctx context.Context, ref string) ([]byte, error) {
	const op = "ImagesInfrastructure.FetchImage"

	var (
		data []byte
		err  error
	)

	if isHTTPRef(ref) {
		m.logger.Debugf("fetching query image by url")
		data, err = m.fetchURL(ctx, ref)
	} else {
		m.logger.Debugf("fetching query image from object storage: %s", ref)
		data, err = m.repo.Download(ctx, ref)
	}
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrImageUnavailable))
	}

	if len(data) == 0 {
		return nil, e.Wrap(op, e.ErrImageUnavailable)
	}

	return data, nil
}

func (m *ImagesInfrastructure) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

func isHTTPRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
