package ml_service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/jitter"
	"github.com/furnish-tech/reco-backend/pkg/logger"
)

// MLService клиент провайдера эмбеддингов. Ходит в внешний ML-сервис
// по HTTP/JSON с retry-логикой и ограничением одновременных запросов.
type MLService struct {
	baseURL    string
	httpClient *http.Client
	sem        chan struct{}
	maxRetries int
	logger     logger.Logger
}

type embedTextRequest struct {
	Text string `json:"text"`
}

type embedImageRequest struct {
	Image string `json:"image"` // base64
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

func NewMLService(cfg *cfg.MLServiceCfg, logger logger.Logger) *MLService {
	return &MLService{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// Configured сообщает, задан ли адрес провайдера эмбеддингов.
func (m *MLService) Configured() bool {
	return m.baseURL != ""
}

// EmbedText возвращает вектор текста запроса.
func (m *MLService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	const op = "MLService.EmbedText"

	body, err := json.Marshal(embedTextRequest{Text: text})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := m.embedWithRetry(ctx, "/embed/text", body)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// EmbedImage возвращает вектор изображения запроса.
func (m *MLService) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	const op = "MLService.EmbedImage"

	body, err := json.Marshal(embedImageRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := m.embedWithRetry(ctx, "/embed/image", body)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// embedWithRetry выполняет запрос к ML-сервису с экспоненциальной задержкой
// между попытками. Исчерпание попыток трактуется как отказ провайдера.
func (m *MLService) embedWithRetry(ctx context.Context, path string, body []byte) ([]float32, error) {
	const (
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	if m.baseURL == "" {
		return nil, e.ErrEmbedderNotConfigured
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		vector, err := m.embedOnce(ctx, path, body)
		if err == nil {
			return vector, nil
		}
		lastErr = err

		if attempt == m.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		m.logger.Warnf("embedding request failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, e.Wrap(lastErr.Error(), e.ErrEmbeddingFailure)
}

// embedOnce выполняет один HTTP-запрос под семафором конкурентности.
func (m *MLService) embedOnce(ctx context.Context, path string, body []byte) ([]float32, error) {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ml service returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	if len(parsed.Vector) == 0 {
		return nil, e.ErrEmptyVector
	}

	return parsed.Vector, nil
}
