package domain

// Candidate — промежуточный результат поиска: живёт в рамках одного запроса
// и в кэше результатов, никогда не персистится.
type Candidate struct {
	ProductID   string
	Score       float64 // объединённый ANN-score (нормированный)
	RerankScore float64
	Reranked    bool
}

// Less задаёт итоговый порядок кандидатов: rerank-score доминирует,
// ANN-score разрешает равенства. Для нереранкнутых наборов действует ANN-порядок.
func (c Candidate) Less(other Candidate) bool {
	if c.Reranked && other.Reranked && c.RerankScore != other.RerankScore {
		return c.RerankScore > other.RerankScore
	}
	return c.Score > other.Score
}
