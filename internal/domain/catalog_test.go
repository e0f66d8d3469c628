package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_PreservesOrder(t *testing.T) {
	c := NewCatalog([]Product{
		{ID: "b", Title: "Bench"},
		{ID: "a", Title: "Armchair"},
		{ID: "b", Title: "Bench duplicate"},
	})

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 0, c.Position("b"))
	assert.Equal(t, 1, c.Position("a"))
	assert.Equal(t, 2, c.Position("ghost"), "unknown id sorts after the catalog")

	p, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "Bench", p.Title, "first record wins on duplicate id")

	_, ok = c.Get("ghost")
	assert.False(t, ok)
}

func TestCandidate_Less(t *testing.T) {
	reranked := func(rerank, ann float64) Candidate {
		return Candidate{Score: ann, RerankScore: rerank, Reranked: true}
	}

	assert.True(t, reranked(0.9, 0.1).Less(reranked(0.2, 0.8)), "rerank score dominates")
	assert.True(t, reranked(0.5, 0.8).Less(reranked(0.5, 0.2)), "ann score breaks rerank ties")

	plain := func(ann float64) Candidate { return Candidate{Score: ann} }
	assert.True(t, plain(0.8).Less(plain(0.3)))
	assert.False(t, plain(0.3).Less(plain(0.8)))
}

func TestProduct_SearchText(t *testing.T) {
	withDesc := Product{Title: "Oslo Chair", Description: "Solid oak frame"}
	assert.Equal(t, "Oslo Chair. Solid oak frame", withDesc.SearchText())

	bare := Product{Title: "Oslo Chair"}
	assert.Equal(t, "Oslo Chair", bare.SearchText())
}

func TestReason_Render(t *testing.T) {
	r := NewReason(ReasonTextMatch, map[string]string{"count": "42"})
	assert.Equal(t, "matched 42 candidates by text similarity", r.Render())

	assert.Equal(t, "served from query cache", NewReason(ReasonCacheHit, nil).Render())
	assert.Equal(t, "custom_code", NewReason(ReasonCode("custom_code"), nil).Render())
}
