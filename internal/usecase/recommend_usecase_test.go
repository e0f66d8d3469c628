package usecase

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==== стабы зависимостей ====

type stubQueryCache struct {
	items  map[string][]domain.Candidate
	hits   uint64
	misses uint64
}

func newStubQueryCache() *stubQueryCache {
	return &stubQueryCache{items: make(map[string][]domain.Candidate)}
}

func (s *stubQueryCache) Get(fingerprint string) ([]domain.Candidate, bool) {
	cands, ok := s.items[fingerprint]
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	return cands, ok
}

func (s *stubQueryCache) Put(fingerprint string, candidates []domain.Candidate) {
	s.items[fingerprint] = candidates
}

func (s *stubQueryCache) Stats() CacheStats {
	return CacheStats{Hits: s.hits, Misses: s.misses, CurrentSize: len(s.items), Capacity: 256}
}

func (s *stubQueryCache) InvalidateAll() {
	s.items = make(map[string][]domain.Candidate)
}

type stubEmbCache struct {
	vectors map[string][]float32
}

func newStubEmbCache() *stubEmbCache {
	return &stubEmbCache{vectors: make(map[string][]float32)}
}

func (s *stubEmbCache) GetVector(ctx context.Context, key string) ([]float32, bool) {
	v, ok := s.vectors[key]
	return v, ok
}

func (s *stubEmbCache) SetVector(ctx context.Context, key string, vector []float32) {
	s.vectors[key] = vector
}

type fakeEmbedder struct {
	textCalls  int
	imageCalls int
	err        error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.textCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	f.imageCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0, 1, 0}, nil
}

func (f *fakeEmbedder) Configured() bool {
	return true
}

type fakeIndex struct {
	points      map[domain.Modality][]domain.ScoredPoint
	searchCalls int
}

func (f *fakeIndex) Search(ctx context.Context, vector []float32, modality domain.Modality, topN uint64) ([]domain.ScoredPoint, error) {
	f.searchCalls++
	return f.points[modality], nil
}

func (f *fakeIndex) Upsert(ctx context.Context, embeddings []domain.Embedding) error {
	return nil
}

func (f *fakeIndex) Remove(ctx context.Context, productID string) error {
	return nil
}

func (f *fakeIndex) Backend() string {
	return "fake"
}

type fakeReranker struct {
	enabled bool
	scores  map[string]float32 // по тексту документа
	err     error
	batches [][]string
}

func (f *fakeReranker) Enabled() bool {
	return f.enabled
}

func (f *fakeReranker) Score(ctx context.Context, query string, documents []string) ([]float32, error) {
	f.batches = append(f.batches, documents)
	if f.err != nil {
		return nil, f.err
	}

	scores := make([]float32, len(documents))
	for i, doc := range documents {
		scores[i] = f.scores[doc]
	}
	return scores, nil
}

type stubImages struct {
	err error
}

func (s *stubImages) FetchImage(ctx context.Context, ref string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte{0xFF, 0xD8}, nil
}

// ==== вспомогательные конструкторы ====

func testRetrievalCfg() *cfg.RetrievalCfg {
	return &cfg.RetrievalCfg{
		KMin:            1,
		KMax:            50,
		DefaultK:        10,
		DefaultPageSize: 8,
		MaxPageSize:     20,
		MaxQueryLen:     500,
		PoolSize:        200,
		TextWeight:      0.5,
		ImageWeight:     0.5,
		MMRLambda:       0.7,
		EmbedTimeout:    time.Second,
		SearchTimeout:   time.Second,
		RerankTimeout:   time.Second,
	}
}

func testLogger() logger.Logger {
	return logger.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testProduct(id, title, brand string, priceCents int64, categories ...string) domain.Product {
	return *domain.NewProduct(id, title, brand, "", priceCents, categories, "")
}

type ucFixture struct {
	uc       *RetrievalUC
	index    *fakeIndex
	embedder *fakeEmbedder
	reranker *fakeReranker
	cache    *stubQueryCache
	embCache *stubEmbCache
}

func newFixture(catalog *domain.Catalog, textPoints []domain.ScoredPoint, reranker *fakeReranker) *ucFixture {
	if reranker == nil {
		reranker = &fakeReranker{}
	}

	f := &ucFixture{
		index:    &fakeIndex{points: map[domain.Modality][]domain.ScoredPoint{domain.ModalityText: textPoints}},
		embedder: &fakeEmbedder{},
		reranker: reranker,
		cache:    newStubQueryCache(),
		embCache: newStubEmbCache(),
	}

	f.uc = NewRetrievalUC(
		catalog, f.index, f.embedder, f.reranker, &stubImages{},
		f.cache, f.embCache, testRetrievalCfg(), 2, testLogger(),
	)

	return f
}

func chairsCatalog() *domain.Catalog {
	return domain.NewCatalog([]domain.Product{
		testProduct("p1", "Aria Lounge Chair", "Nordika", 19999, "chairs"),
		testProduct("p2", "Aria Dining Chair", "Nordika", 14999, "chairs"),
		testProduct("p3", "Oslo Dining Chair", "Fjord", 12999, "chairs"),
		testProduct("p4", "Bergen Coffee Table", "Fjord", 24999, "tables"),
		testProduct("p5", "Kyoto Armchair", "Zen", 29999, "chairs"),
		testProduct("p6", "Kyoto Low Table", "Zen", 9999, "tables"),
	})
}

// ==== тесты ====

func TestRecommend_TextOrdering(t *testing.T) {
	catalog := chairsCatalog()
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p4", Score: 0.8},
		{ProductID: "p5", Score: 0.6},
	}

	f := newFixture(catalog, points, nil)

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "lounge chair"})
	require.NoError(t, err)

	require.Len(t, res.Products, 3)
	// бренды и категории не пересекаются, поэтому MMR сохраняет ANN-порядок
	assert.Equal(t, "p1", res.Products[0].ID)
	assert.Equal(t, "p4", res.Products[1].ID)
	assert.Equal(t, "p5", res.Products[2].ID)
	assert.Equal(t, 3, res.TotalFound)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, "lounge chair", res.Query)
}

func TestRecommend_Validation(t *testing.T) {
	f := newFixture(chairsCatalog(), nil, nil)
	ctx := context.Background()

	_, err := f.uc.Recommend(ctx, &RecommendReq{})
	assert.ErrorIs(t, err, e.ErrEmptyQuery)

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.uc.Recommend(ctx, &RecommendReq{Query: string(long)})
	assert.ErrorIs(t, err, e.ErrQueryTooLong)

	_, err = f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Page: -1})
	assert.ErrorIs(t, err, e.ErrInvalidPage)

	_, err = f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Size: 21})
	assert.ErrorIs(t, err, e.ErrInvalidPageSize)

	_, err = f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Filters: map[string]string{"price_min": "abc"}})
	assert.ErrorIs(t, err, e.ErrInvalidPrice)

	_, err = f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Filters: map[string]string{"price_max": "-5"}})
	assert.ErrorIs(t, err, e.ErrInvalidPrice)
}

func TestRecommend_KClamped(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p3", Score: 0.8},
		{ProductID: "p5", Score: 0.7},
	}
	f := newFixture(chairsCatalog(), points, nil)

	// k выше верхней границы зажимается, а не отвергается
	res, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair", K: 500})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalFound)

	// k ниже нижней границы зажимается до единицы
	res, err = f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair", K: -7})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalFound)
}

func TestRecommend_CacheHitSkipsPipeline(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p3", Score: 0.7},
	}
	f := newFixture(chairsCatalog(), points, nil)
	ctx := context.Background()

	first, err := f.uc.Recommend(ctx, &RecommendReq{Query: "Dining Chair"})
	require.NoError(t, err)
	require.Equal(t, 1, f.embedder.textCalls)
	require.Equal(t, 1, f.index.searchCalls)

	// тот же запрос с другой страницей — тот же отпечаток
	second, err := f.uc.Recommend(ctx, &RecommendReq{Query: "  dining chair ", Size: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, f.embedder.textCalls, "embedding must be computed once")
	assert.Equal(t, 1, f.index.searchCalls, "index must be searched once")
	assert.Equal(t, first.TotalFound, second.TotalFound)
	require.Len(t, second.Reasons, 1)
	assert.Equal(t, domain.ReasonCacheHit, second.Reasons[0].Code)
}

func TestRecommend_EmbeddingMemoized(t *testing.T) {
	points := []domain.ScoredPoint{{ProductID: "p1", Score: 0.9}}
	f := newFixture(chairsCatalog(), points, nil)
	ctx := context.Background()

	_, err := f.uc.Recommend(ctx, &RecommendReq{Query: "armchair"})
	require.NoError(t, err)

	// другой k — другой отпечаток, но текст запроса тот же
	_, err = f.uc.Recommend(ctx, &RecommendReq{Query: "armchair", K: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, f.embedder.textCalls)
	assert.Equal(t, 2, f.index.searchCalls)
}

func TestRecommend_Idempotent(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p3", Score: 0.8},
		{ProductID: "p5", Score: 0.7},
	}
	f := newFixture(chairsCatalog(), points, nil)
	ctx := context.Background()

	first, err := f.uc.Recommend(ctx, &RecommendReq{Query: "chair"})
	require.NoError(t, err)

	f.uc.InvalidateCache()

	second, err := f.uc.Recommend(ctx, &RecommendReq{Query: "chair"})
	require.NoError(t, err)

	require.Len(t, second.Products, len(first.Products))
	for i := range first.Products {
		assert.Equal(t, first.Products[i].ID, second.Products[i].ID)
	}
}

func TestRecommend_Filters(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9}, // Nordika, 199.99
		{ProductID: "p3", Score: 0.8}, // Fjord, 129.99
		{ProductID: "p5", Score: 0.7}, // Zen, 299.99
	}

	t.Run("brand", func(t *testing.T) {
		f := newFixture(chairsCatalog(), points, nil)
		res, err := f.uc.Recommend(context.Background(), &RecommendReq{
			Query:   "chair",
			Filters: map[string]string{"brand": "fjord"},
		})
		require.NoError(t, err)
		require.Len(t, res.Products, 1)
		assert.Equal(t, "p3", res.Products[0].ID)
	})

	t.Run("price range", func(t *testing.T) {
		f := newFixture(chairsCatalog(), points, nil)
		res, err := f.uc.Recommend(context.Background(), &RecommendReq{
			Query:   "chair",
			Filters: map[string]string{"price_min": "150.00", "price_max": "250"},
		})
		require.NoError(t, err)
		require.Len(t, res.Products, 1)
		assert.Equal(t, "p1", res.Products[0].ID)
	})

	t.Run("category", func(t *testing.T) {
		f := newFixture(chairsCatalog(), append(points, domain.ScoredPoint{ProductID: "p4", Score: 0.6}), nil)
		res, err := f.uc.Recommend(context.Background(), &RecommendReq{
			Query:   "table",
			Filters: map[string]string{"category": "Tables"},
		})
		require.NoError(t, err)
		require.Len(t, res.Products, 1)
		assert.Equal(t, "p4", res.Products[0].ID)
	})
}

func TestRecommend_Diversity(t *testing.T) {
	catalog := domain.NewCatalog([]domain.Product{
		testProduct("a1", "Aria Chair I", "Nordika", 10000, "chairs"),
		testProduct("a2", "Aria Chair II", "Nordika", 11000, "chairs"),
		testProduct("b1", "Oslo Bench", "Fjord", 12000, "benches"),
		testProduct("c1", "Kyoto Stool", "Zen", 13000, "stools"),
	})
	points := []domain.ScoredPoint{
		{ProductID: "a1", Score: 1.0},
		{ProductID: "a2", Score: 0.95},
		{ProductID: "b1", Score: 0.9},
		{ProductID: "c1", Score: 0.8},
	}

	f := newFixture(catalog, points, nil)

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "seat", K: 3})
	require.NoError(t, err)
	require.Len(t, res.Products, 3)

	brands := map[string]bool{}
	for _, p := range res.Products {
		brands[p.Brand] = true
	}
	assert.Len(t, brands, 3, "near-duplicate brand must be displaced by diverse candidates")
}

func TestRecommend_Reranked(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p4", Score: 0.8},
		{ProductID: "p5", Score: 0.7},
	}
	catalog := chairsCatalog()

	// реранкер переворачивает ANN-порядок
	rr := &fakeReranker{
		enabled: true,
		scores: map[string]float32{
			"Aria Lounge Chair":   0.1,
			"Bergen Coffee Table": 0.5,
			"Kyoto Armchair":      0.9,
		},
	}

	f := newFixture(catalog, points, rr)

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair"})
	require.NoError(t, err)
	require.Len(t, res.Products, 3)

	assert.Equal(t, "p5", res.Products[0].ID)
	assert.Equal(t, "p4", res.Products[1].ID)
	assert.Equal(t, "p1", res.Products[2].ID)

	// батчи размера rerankBatch=2: 2 + 1
	require.Len(t, rr.batches, 2)
	assert.Len(t, rr.batches[0], 2)
	assert.Len(t, rr.batches[1], 1)

	assertHasReason(t, res.Reasons, domain.ReasonReranked)
}

func TestRecommend_RerankerFailureFallsBack(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p4", Score: 0.8},
	}
	rr := &fakeReranker{enabled: true, err: e.ErrRerankerFailure}

	f := newFixture(chairsCatalog(), points, rr)

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair"})
	require.NoError(t, err, "reranker failure must degrade, not fail the request")
	require.Len(t, res.Products, 2)

	// порядок ANN сохранён
	assert.Equal(t, "p1", res.Products[0].ID)
	assert.Equal(t, "p4", res.Products[1].ID)
	assertHasReason(t, res.Reasons, domain.ReasonRerankSkipped)
}

func TestRecommend_ImageOnlySkipsRerank(t *testing.T) {
	catalog := chairsCatalog()
	rr := &fakeReranker{enabled: true}
	f := newFixture(catalog, nil, rr)
	f.index.points[domain.ModalityImage] = []domain.ScoredPoint{
		{ProductID: "p5", Score: 0.9},
		{ProductID: "p1", Score: 0.7},
	}

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{ImageRef: "uploads/sofa.jpg"})
	require.NoError(t, err)

	require.Len(t, res.Products, 2)
	assert.Equal(t, "p5", res.Products[0].ID)
	assert.Equal(t, 1, f.embedder.imageCalls)
	assert.Empty(t, rr.batches, "image-only query must not call the reranker")
	assertHasReason(t, res.Reasons, domain.ReasonImageMatch)
	assertHasReason(t, res.Reasons, domain.ReasonRerankSkipped)
}

func TestRecommend_HybridMerge(t *testing.T) {
	catalog := chairsCatalog()
	f := newFixture(catalog, []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p3", Score: 0.5},
		{ProductID: "p6", Score: 0.1},
	}, nil)
	f.index.points[domain.ModalityImage] = []domain.ScoredPoint{
		{ProductID: "p3", Score: 0.95},
		{ProductID: "p6", Score: 0.4},
	}

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{
		Query:    "dining chair",
		ImageRef: "uploads/chair.jpg",
	})
	require.NoError(t, err)
	require.Len(t, res.Products, 3)

	// p3 найден обеими модальностями и получает комбинированный score
	assert.Equal(t, "p3", res.Products[0].ID)
	assertHasReason(t, res.Reasons, domain.ReasonHybridMerge)
}

func TestRecommend_UnknownProductDropped(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "ghost", Score: 0.95}, // устаревшая точка индекса
	}
	f := newFixture(chairsCatalog(), points, nil)

	res, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "p1", res.Products[0].ID)
}

func TestRecommend_Pagination(t *testing.T) {
	points := []domain.ScoredPoint{
		{ProductID: "p1", Score: 0.9},
		{ProductID: "p3", Score: 0.8},
		{ProductID: "p4", Score: 0.7},
		{ProductID: "p5", Score: 0.6},
	}
	f := newFixture(chairsCatalog(), points, nil)
	ctx := context.Background()

	res, err := f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Size: 3})
	require.NoError(t, err)
	assert.Len(t, res.Products, 3)
	assert.Equal(t, 4, res.TotalFound)
	assert.Equal(t, 2, res.TotalPages)

	res, err = f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Size: 3, Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Products, 1)

	// страница за пределами выдачи — пустой список, а не ошибка
	res, err = f.uc.Recommend(ctx, &RecommendReq{Query: "chair", Size: 3, Page: 7})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Equal(t, 4, res.TotalFound)
}

func TestRecommend_EmbedderFailure(t *testing.T) {
	f := newFixture(chairsCatalog(), nil, nil)
	f.embedder.err = e.ErrEmbeddingFailure

	_, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair"})
	assert.ErrorIs(t, err, e.ErrEmbeddingFailure)
}

func TestRecommend_ImageUnavailable(t *testing.T) {
	f := newFixture(chairsCatalog(), nil, nil)
	f.uc.images = &stubImages{err: e.ErrImageUnavailable}

	_, err := f.uc.Recommend(context.Background(), &RecommendReq{ImageRef: "uploads/missing.jpg"})
	assert.ErrorIs(t, err, e.ErrImageUnavailable)
}

func TestHealth(t *testing.T) {
	f := newFixture(chairsCatalog(), []domain.ScoredPoint{{ProductID: "p1", Score: 0.9}}, nil)

	_, err := f.uc.Recommend(context.Background(), &RecommendReq{Query: "chair"})
	require.NoError(t, err)

	info := f.uc.Health()
	assert.Equal(t, "fake", info.IndexBackend)
	assert.Equal(t, uint64(1), info.Cache.Misses)
}

func assertHasReason(t *testing.T, reasons []domain.Reason, code domain.ReasonCode) {
	t.Helper()
	for _, r := range reasons {
		if r.Code == code {
			return
		}
	}
	t.Errorf("reason %q not found in %v", code, reasons)
}
