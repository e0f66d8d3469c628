package ml_service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMLService(baseURL string, maxRetries int) *MLService {
	return NewMLService(&cfg.MLServiceCfg{
		BaseURL:       baseURL,
		MaxConcurrent: 4,
		MaxRetries:    maxRetries,
		Timeout:       time.Second,
	}, logger.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestMLService_EmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed/text", r.URL.Path)

		var req embedTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "velvet sofa", req.Text)

		json.NewEncoder(w).Encode(embedResponse{Vector: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	ml := testMLService(srv.URL, 1)

	vector, err := ml.EmbedText(context.Background(), "velvet sofa")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestMLService_EmbedImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed/image", r.URL.Path)

		var req embedImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Image)

		json.NewEncoder(w).Encode(embedResponse{Vector: []float32{0.5, 0.5}})
	}))
	defer srv.Close()

	ml := testMLService(srv.URL, 1)

	vector, err := ml.EmbedImage(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)
	assert.Len(t, vector, 2)
}

func TestMLService_NotConfigured(t *testing.T) {
	ml := testMLService("", 3)

	_, err := ml.EmbedText(context.Background(), "sofa")
	assert.ErrorIs(t, err, e.ErrEmbedderNotConfigured)
}

func TestMLService_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Vector: []float32{1}})
	}))
	defer srv.Close()

	ml := testMLService(srv.URL, 3)

	vector, err := ml.EmbedText(context.Background(), "sofa")
	require.NoError(t, err)
	assert.Len(t, vector, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMLService_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ml := testMLService(srv.URL, 2)

	_, err := ml.EmbedText(context.Background(), "sofa")
	assert.ErrorIs(t, err, e.ErrEmbeddingFailure)
}

func TestMLService_EmptyVectorRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	ml := testMLService(srv.URL, 1)

	_, err := ml.EmbedText(context.Background(), "sofa")
	assert.ErrorIs(t, err, e.ErrEmbeddingFailure)
}
