package reranker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReranker(baseURL string) *Reranker {
	return NewReranker(&cfg.RerankerCfg{
		BaseURL:  baseURL,
		Model:    "cross-encoder/test",
		Enabled:  baseURL != "",
		MaxBatch: 32,
		Timeout:  time.Second,
	}, logger.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestReranker_ScoreAlignsByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cross-encoder/test", req.Model)
		assert.Equal(t, "oak chair", req.Query)

		// результаты в перемешанном порядке с явными индексами
		json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{
			{Index: 1, RelevanceScore: 0.2},
			{Index: 0, RelevanceScore: 0.9},
			{Index: 2, RelevanceScore: 0.5},
		}})
	}))
	defer srv.Close()

	rr := testReranker(srv.URL)

	scores, err := rr.Score(context.Background(), "oak chair", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.InDelta(t, 0.9, float64(scores[0]), 1e-6)
	assert.InDelta(t, 0.2, float64(scores[1]), 1e-6)
	assert.InDelta(t, 0.5, float64(scores[2]), 1e-6)
}

func TestReranker_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rr := testReranker(srv.URL)

	_, err := rr.Score(context.Background(), "chair", []string{"a"})
	assert.ErrorIs(t, err, e.ErrRerankerFailure)
}

func TestReranker_ResultCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{
			{Index: 0, RelevanceScore: 0.9},
		}})
	}))
	defer srv.Close()

	rr := testReranker(srv.URL)

	_, err := rr.Score(context.Background(), "chair", []string{"a", "b"})
	assert.ErrorIs(t, err, e.ErrRerankerFailure)
}

func TestReranker_OutOfRangeIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{Results: []rerankResult{
			{Index: 5, RelevanceScore: 0.9},
		}})
	}))
	defer srv.Close()

	rr := testReranker(srv.URL)

	_, err := rr.Score(context.Background(), "chair", []string{"a"})
	assert.ErrorIs(t, err, e.ErrRerankerFailure)
}

func TestReranker_Disabled(t *testing.T) {
	rr := testReranker("")

	assert.False(t, rr.Enabled())

	_, err := rr.Score(context.Background(), "chair", []string{"a"})
	assert.ErrorIs(t, err, e.ErrRerankerFailure)
}

func TestReranker_EmptyDocuments(t *testing.T) {
	rr := testReranker("http://localhost:1")

	scores, err := rr.Score(context.Background(), "chair", nil)
	assert.NoError(t, err)
	assert.Empty(t, scores)
}
