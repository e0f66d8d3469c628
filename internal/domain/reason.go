package domain

import "fmt"

// ReasonCode — машиночитаемый код объяснения выдачи.
// В текст коды превращаются только на границе HTTP.
type ReasonCode string

const (
	ReasonTextMatch     ReasonCode = "text_match"
	ReasonImageMatch    ReasonCode = "image_match"
	ReasonHybridMerge   ReasonCode = "hybrid_merge"
	ReasonFiltered      ReasonCode = "filtered"
	ReasonDiversified   ReasonCode = "diversified"
	ReasonReranked      ReasonCode = "reranked"
	ReasonRerankSkipped ReasonCode = "rerank_skipped"
	ReasonCacheHit      ReasonCode = "cache_hit"
)

// Reason — код с параметрами (например, число кандидатов или имя фильтра).
type Reason struct {
	Code   ReasonCode
	Params map[string]string
}

func NewReason(code ReasonCode, params map[string]string) Reason {
	return Reason{Code: code, Params: params}
}

// Render возвращает человекочитаемое объяснение.
func (r Reason) Render() string {
	switch r.Code {
	case ReasonTextMatch:
		return fmt.Sprintf("matched %s candidates by text similarity", r.Params["count"])
	case ReasonImageMatch:
		return fmt.Sprintf("matched %s candidates by image similarity", r.Params["count"])
	case ReasonHybridMerge:
		return fmt.Sprintf("merged text and image similarity (weights %s/%s)", r.Params["text_weight"], r.Params["image_weight"])
	case ReasonFiltered:
		return fmt.Sprintf("filtered by %s", r.Params["filters"])
	case ReasonDiversified:
		return "diversified across brands and categories"
	case ReasonReranked:
		return "reranked for relevance by cross-encoder"
	case ReasonRerankSkipped:
		return "reranking skipped, vector similarity order used"
	case ReasonCacheHit:
		return "served from query cache"
	default:
		return string(r.Code)
	}
}
