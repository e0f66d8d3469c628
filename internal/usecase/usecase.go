package usecase

import "context"

type RecommendUC interface {
	Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error)
	InvalidateCache()
	Health() *HealthInfo
}
