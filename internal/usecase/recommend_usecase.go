package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/furnish-tech/reco-backend/internal/domain"
	"github.com/furnish-tech/reco-backend/pkg/e"
	"github.com/furnish-tech/reco-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// RetrievalUC реализует гибридный пайплайн рекомендаций:
// embed → ANN-поиск → объединение модальностей → фильтры → MMR → реранк →
// кэширование → пагинация.
type RetrievalUC struct {
	catalog     *domain.Catalog
	index       VectorIndex
	embedder    EmbeddingInfra
	reranker    RerankerInfra
	images      ImagesInfra
	queryCache  QueryCache
	embCache    EmbeddingCache
	cfg         *cfg.RetrievalCfg
	rerankBatch int
	logger      logger.Logger
}

func NewRetrievalUC(
	catalog *domain.Catalog,
	index VectorIndex,
	embedder EmbeddingInfra,
	reranker RerankerInfra,
	images ImagesInfra,
	queryCache QueryCache,
	embCache EmbeddingCache,
	retrievalCfg *cfg.RetrievalCfg,
	rerankBatch int,
	logger logger.Logger,
) *RetrievalUC {
	return &RetrievalUC{
		catalog:     catalog,
		index:       index,
		embedder:    embedder,
		reranker:    reranker,
		images:      images,
		queryCache:  queryCache,
		embCache:    embCache,
		cfg:         retrievalCfg,
		rerankBatch: rerankBatch,
		logger:      logger,
	}
}

// Recommend обрабатывает запрос рекомендаций. Повторный запрос с тем же
// отпечатком (page/size не в счёт) обслуживается из кэша без обращений
// к провайдеру эмбеддингов и индексу.
func (r *RetrievalUC) Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error) {
	const op = "RetrievalUC.Recommend"

	start := time.Now()

	norm, err := r.normalizeRequest(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	fingerprint := Fingerprint(norm)

	if cands, ok := r.queryCache.Get(fingerprint); ok {
		reasons := []domain.Reason{domain.NewReason(domain.ReasonCacheHit, nil)}
		return r.buildResponse(norm, cands, reasons, start), nil
	}

	cands, reasons, err := r.runPipeline(ctx, norm)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// В кэш кладётся полный список кандидатов до пагинации
	r.queryCache.Put(fingerprint, cands)

	return r.buildResponse(norm, cands, reasons, start), nil
}

// InvalidateCache сбрасывает кэш результатов. Вызывается при перезагрузке каталога.
func (r *RetrievalUC) InvalidateCache() {
	r.queryCache.InvalidateAll()
}

// Health возвращает активный бэкенд индекса, доступность провайдеров
// и счётчики кэша для health-эндпоинта.
func (r *RetrievalUC) Health() *HealthInfo {
	return NewHealthInfo(r.index.Backend(), r.embedder.Configured(), r.reranker.Enabled(), r.queryCache.Stats())
}

// normalizeRequest валидирует запрос и возвращает нормализованную копию:
// обрезанные строки, зажатый в границы k, значения по умолчанию для
// пагинации и канонические (в центах) значения ценовых фильтров.
func (r *RetrievalUC) normalizeRequest(req *RecommendReq) (*RecommendReq, error) {
	query := strings.TrimSpace(req.Query)
	imageRef := strings.TrimSpace(req.ImageRef)

	if query == "" && imageRef == "" {
		return nil, e.ErrEmptyQuery
	}

	if len(query) > r.cfg.MaxQueryLen {
		return nil, e.ErrQueryTooLong
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, e.ErrInvalidPage
	}

	size := req.Size
	if size == 0 {
		size = r.cfg.DefaultPageSize
	}
	if size < 1 || size > r.cfg.MaxPageSize {
		return nil, e.ErrInvalidPageSize
	}

	k := req.K
	if k == 0 {
		k = r.cfg.DefaultK
	}
	if k < r.cfg.KMin {
		k = r.cfg.KMin
	}
	if k > r.cfg.KMax {
		k = r.cfg.KMax
	}

	filters, err := normalizeFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	return NewRecommendReq(query, imageRef, k, page, size, filters), nil
}

// normalizeFilters копирует фильтры, приводя ценовые значения
// к каноническому виду в центах.
func normalizeFilters(filters map[string]string) (map[string]string, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	normalized := make(map[string]string, len(filters))
	for key, value := range filters {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch key {
		case "price_min", "price_max":
			d, err := decimal.NewFromString(value)
			if err != nil || d.LessThan(decimal.Zero) {
				return nil, e.ErrInvalidPrice
			}
			cents := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
			normalized[key] = strconv.FormatInt(cents, 10)
		default:
			normalized[key] = value
		}
	}

	return normalized, nil
}

type annResult struct {
	modality domain.Modality
	points   []domain.ScoredPoint
	err      error
}

// runPipeline выполняет дорогую часть поиска: эмбеддинги, ANN по каждой
// модальности (параллельно), объединение, фильтры, MMR и реранк.
func (r *RetrievalUC) runPipeline(ctx context.Context, req *RecommendReq) ([]domain.Candidate, []domain.Reason, error) {
	const op = "RetrievalUC.runPipeline"

	modalities := 0
	resCh := make(chan annResult, 2)

	if req.Query != "" {
		modalities++
		go func() {
			points, err := r.searchText(ctx, req.Query)
			resCh <- annResult{modality: domain.ModalityText, points: points, err: err}
		}()
	}

	if req.ImageRef != "" {
		modalities++
		go func() {
			points, err := r.searchImage(ctx, req.ImageRef)
			resCh <- annResult{modality: domain.ModalityImage, points: points, err: err}
		}()
	}

	var textPoints, imagePoints []domain.ScoredPoint
	for i := 0; i < modalities; i++ {
		res := <-resCh
		if res.err != nil {
			return nil, nil, e.Wrap(op, res.err)
		}
		if res.modality == domain.ModalityText {
			textPoints = res.points
		} else {
			imagePoints = res.points
		}
	}

	reasons := make([]domain.Reason, 0, 4)
	if req.Query != "" {
		reasons = append(reasons, domain.NewReason(domain.ReasonTextMatch,
			map[string]string{"count": strconv.Itoa(len(textPoints))}))
	}
	if req.ImageRef != "" {
		reasons = append(reasons, domain.NewReason(domain.ReasonImageMatch,
			map[string]string{"count": strconv.Itoa(len(imagePoints))}))
	}
	if req.Query != "" && req.ImageRef != "" {
		reasons = append(reasons, domain.NewReason(domain.ReasonHybridMerge, map[string]string{
			"text_weight":  fmt.Sprintf("%.2f", r.cfg.TextWeight),
			"image_weight": fmt.Sprintf("%.2f", r.cfg.ImageWeight),
		}))
	}

	pool := r.mergeCandidates(textPoints, imagePoints)

	if len(req.Filters) > 0 {
		pool = applyFilters(pool, req.Filters)
		reasons = append(reasons, domain.NewReason(domain.ReasonFiltered,
			map[string]string{"filters": filterKeys(req.Filters)}))
	}

	selected := maxMarginalRelevance(pool, r.cfg.MMRLambda, req.K)
	if len(selected) > 1 {
		reasons = append(reasons, domain.NewReason(domain.ReasonDiversified, nil))
	}

	cands, reranked := r.rerank(ctx, req.Query, selected)
	if reranked {
		reasons = append(reasons, domain.NewReason(domain.ReasonReranked, nil))
	} else {
		reasons = append(reasons, domain.NewReason(domain.ReasonRerankSkipped, nil))
	}

	return cands, reasons, nil
}

// searchText превращает текст запроса в вектор и ищет в текстовом пространстве.
func (r *RetrievalUC) searchText(ctx context.Context, query string) ([]domain.ScoredPoint, error) {
	vector, err := r.embedTextMemoized(ctx, query)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	return r.index.Search(sctx, vector, domain.ModalityText, uint64(r.cfg.PoolSize))
}

// searchImage разрешает ссылку на изображение в байты, получает визуальный
// вектор и ищет в визуальном пространстве.
func (r *RetrievalUC) searchImage(ctx context.Context, imageRef string) ([]domain.ScoredPoint, error) {
	data, err := r.images.FetchImage(ctx, imageRef)
	if err != nil {
		return nil, err
	}

	ectx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	vector, err := r.embedder.EmbedImage(ectx, data)
	cancel()
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	defer cancel()

	return r.index.Search(sctx, vector, domain.ModalityImage, uint64(r.cfg.PoolSize))
}

// embedTextMemoized ходит за текстовым вектором сначала в кэш эмбеддингов.
func (r *RetrievalUC) embedTextMemoized(ctx context.Context, query string) ([]float32, error) {
	key := strings.ToLower(query)

	if vector, ok := r.embCache.GetVector(ctx, key); ok {
		return vector, nil
	}

	ectx, cancel := context.WithTimeout(ctx, r.cfg.EmbedTimeout)
	defer cancel()

	vector, err := r.embedder.EmbedText(ectx, query)
	if err != nil {
		return nil, err
	}

	r.embCache.SetVector(ctx, key, vector)
	return vector, nil
}

// mergeCandidates объединяет результаты двух модальностей во взвешенную сумму
// нормированных score. Товар, найденный обеими модальностями, получает
// комбинированный score; найденный одной — score, умноженный на её вес.
// Неизвестные каталогу товары (устаревшие точки индекса) отбрасываются.
func (r *RetrievalUC) mergeCandidates(textPoints, imagePoints []domain.ScoredPoint) []pooled {
	combined := make(map[string]float64, len(textPoints)+len(imagePoints))

	for _, p := range normalizeScores(textPoints) {
		combined[p.productID] += r.cfg.TextWeight * p.norm
	}
	for _, p := range normalizeScores(imagePoints) {
		combined[p.productID] += r.cfg.ImageWeight * p.norm
	}

	pool := make([]pooled, 0, len(combined))
	for id, score := range combined {
		product, ok := r.catalog.Get(id)
		if !ok {
			r.logger.Warnf("vector index returned unknown product id: %s", id)
			continue
		}
		pool = append(pool, pooled{product: product, score: score, position: r.catalog.Position(id)})
	}

	// Стабильный порядок: score по убыванию, равенства — по порядку загрузки каталога
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		return pool[i].position < pool[j].position
	})

	return pool
}

type normPoint struct {
	productID string
	norm      float64
}

// normalizeScores приводит score модальности к [0,1] (min-max), чтобы веса
// объединения действовали на сопоставимых диапазонах.
func normalizeScores(points []domain.ScoredPoint) []normPoint {
	if len(points) == 0 {
		return nil
	}

	minScore, maxScore := points[0].Score, points[0].Score
	for _, p := range points[1:] {
		if p.Score < minScore {
			minScore = p.Score
		}
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}

	normalized := make([]normPoint, len(points))
	spread := float64(maxScore - minScore)
	for i, p := range points {
		norm := 1.0
		if spread > 0 {
			norm = float64(p.Score-minScore) / spread
		}
		normalized[i] = normPoint{productID: p.ProductID, norm: norm}
	}

	return normalized
}

// applyFilters отбрасывает кандидатов, не проходящих фильтры запроса.
// Неизвестные ключи фильтров игнорируются.
func applyFilters(pool []pooled, filters map[string]string) []pooled {
	filtered := make([]pooled, 0, len(pool))

	for _, cand := range pool {
		if matchesFilters(cand.product, filters) {
			filtered = append(filtered, cand)
		}
	}

	return filtered
}

func matchesFilters(p *domain.Product, filters map[string]string) bool {
	for key, value := range filters {
		switch key {
		case "category":
			if !hasCategoryFold(p, value) {
				return false
			}
		case "brand":
			if !strings.EqualFold(p.Brand, value) {
				return false
			}
		case "material":
			if p.Material == nil || !strings.EqualFold(*p.Material, value) {
				return false
			}
		case "color":
			if p.Color == nil || !strings.EqualFold(*p.Color, value) {
				return false
			}
		case "price_min":
			if cents, err := strconv.ParseInt(value, 10, 64); err == nil && p.PriceCents < cents {
				return false
			}
		case "price_max":
			if cents, err := strconv.ParseInt(value, 10, 64); err == nil && p.PriceCents > cents {
				return false
			}
		}
	}

	return true
}

func hasCategoryFold(p *domain.Product, category string) bool {
	for _, c := range p.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func filterKeys(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// rerank прогоняет пары (запрос, текст товара) через кросс-энкодер батчами.
// Отказ реранкера деградирует запрос до ANN-порядка и не является ошибкой.
// Для запросов без текста реранк пропускается.
func (r *RetrievalUC) rerank(ctx context.Context, query string, selected []pooled) ([]domain.Candidate, bool) {
	cands := make([]domain.Candidate, len(selected))
	for i, s := range selected {
		cands[i] = domain.Candidate{ProductID: s.product.ID, Score: s.score}
	}

	if query == "" || !r.reranker.Enabled() || len(selected) == 0 {
		return cands, false
	}

	docs := make([]string, len(selected))
	for i, s := range selected {
		docs[i] = s.product.SearchText()
	}

	scores := make([]float32, 0, len(docs))
	for start := 0; start < len(docs); start += r.rerankBatch {
		end := start + r.rerankBatch
		if end > len(docs) {
			end = len(docs)
		}

		rctx, cancel := context.WithTimeout(ctx, r.cfg.RerankTimeout)
		batch, err := r.reranker.Score(rctx, query, docs[start:end])
		cancel()

		if err != nil {
			r.logger.Warnf("reranker failed, falling back to vector order: %v", err)
			return cands, false
		}
		if len(batch) != end-start {
			r.logger.Warnf("reranker returned %d scores for %d documents, falling back", len(batch), end-start)
			return cands, false
		}

		scores = append(scores, batch...)
	}

	positions := make(map[string]int, len(selected))
	for i := range cands {
		cands[i].RerankScore = float64(scores[i])
		cands[i].Reranked = true
		positions[cands[i].ProductID] = selected[i].position
	}

	// rerank-score доминирует, ANN-score разрешает равенства,
	// порядок каталога — последний критерий
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Less(cands[j]) {
			return true
		}
		if cands[j].Less(cands[i]) {
			return false
		}
		return positions[cands[i].ProductID] < positions[cands[j].ProductID]
	})

	return cands, true
}

// buildResponse вырезает запрошенную страницу из списка кандидатов.
// Страница за пределами выдачи — пустой список, а не ошибка.
func (r *RetrievalUC) buildResponse(req *RecommendReq, cands []domain.Candidate, reasons []domain.Reason, start time.Time) *RecommendRes {
	totalFound := len(cands)
	totalPages := (totalFound + req.Size - 1) / req.Size

	products := make([]ProductInfo, 0, req.Size)
	startIdx := (req.Page - 1) * req.Size
	if startIdx < totalFound {
		endIdx := startIdx + req.Size
		if endIdx > totalFound {
			endIdx = totalFound
		}
		for _, cand := range cands[startIdx:endIdx] {
			if product, ok := r.catalog.Get(cand.ProductID); ok {
				products = append(products, NewProductInfo(product))
			}
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	return NewRecommendRes(products, totalFound, totalPages, elapsed, reasons, req.Query)
}
