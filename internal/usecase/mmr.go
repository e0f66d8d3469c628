package usecase

import (
	"strings"

	"github.com/furnish-tech/reco-backend/internal/domain"
)

// pooled — кандидат пула с объединённым ANN-score и позицией в каталоге.
type pooled struct {
	product  *domain.Product
	score    float64
	position int
}

// maxMarginalRelevance отбирает limit кандидатов, на каждом шаге максимизируя
// λ*relevance − (1−λ)*max_similarity_to_selected. Вместо повторного
// использования эмбеддингов похожесть оценивается дешёвым прокси
// по бренду и категориям.
func maxMarginalRelevance(pool []pooled, lambda float64, limit int) []pooled {
	if limit > len(pool) {
		limit = len(pool)
	}

	selected := make([]pooled, 0, limit)
	remaining := append([]pooled(nil), pool...)

	for len(selected) < limit {
		bestIdx := -1
		bestVal := 0.0

		for i, cand := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				if sim := redundancyProxy(cand.product, s.product); sim > redundancy {
					redundancy = sim
				}
			}

			val := lambda*cand.score - (1-lambda)*redundancy
			// пул отсортирован по score и позиции каталога, поэтому
			// при равенстве выигрывает более ранний кандидат
			if bestIdx == -1 || val > bestVal {
				bestIdx = i
				bestVal = val
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// redundancyProxy оценивает похожесть двух товаров: общий бренд — почти
// дубликат, общая категория — частичное пересечение.
func redundancyProxy(a, b *domain.Product) float64 {
	if a.Brand != "" && strings.EqualFold(a.Brand, b.Brand) {
		return 1.0
	}
	if sharesCategoryFold(a, b) {
		return 0.5
	}
	return 0.0
}

func sharesCategoryFold(a, b *domain.Product) bool {
	for _, ca := range a.Categories {
		for _, cb := range b.Categories {
			if strings.EqualFold(ca, cb) {
				return true
			}
		}
	}
	return false
}
