package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
)

// Reranker клиент кросс-энкодера. Оценивает релевантность документов запросу
// по HTTP/JSON. Отсутствие BaseURL отключает реранк целиком.
type Reranker struct {
	baseURL    string
	apiKey     string
	model      string
	enabled    bool
	httpClient *http.Client
	logger     logger.Logger
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float32 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

func NewReranker(cfg *cfg.RerankerCfg, logger logger.Logger) *Reranker {
	return &Reranker{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.ApiKey,
		model:   cfg.Model,
		enabled: cfg.Enabled,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (r *Reranker) Enabled() bool {
	return r.enabled
}

// Score возвращает релевантность каждого документа запросу.
// Результат выровнен по порядку документов независимо от порядка,
// в котором сервис вернул оценки.
func (r *Reranker) Score(ctx context.Context, query string, documents []string) ([]float32, error) {
	const op = "Reranker.Score"

	if !r.enabled {
		return nil, e.Wrap(op, e.ErrRerankerFailure)
	}
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrRerankerFailure))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("reranker returned %d: %s", resp.StatusCode, string(data))
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrRerankerFailure))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrRerankerFailure))
	}

	if len(parsed.Results) != len(documents) {
		err := fmt.Errorf("reranker returned %d results for %d documents", len(parsed.Results), len(documents))
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrRerankerFailure))
	}

	scores := make([]float32, len(documents))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			err := fmt.Errorf("reranker returned out-of-range index %d", res.Index)
			return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrRerankerFailure))
		}
		scores[res.Index] = res.RelevanceScore
	}

	return scores, nil
}
