package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(f float32) *float32 { return &f }

func TestSortScoredPrecedence(t *testing.T) {
	// Each passage orders by its own highest-precedence score (rerank, then
	// fusion, then similarity); those keys compare directly across passages.
	passages := []ScoredPassage{
		{Passage: Passage{ID: "sim-high"}, Score: 0.99},
		{Passage: Passage{ID: "fusion"}, Score: 0.10, FusionScore: ptr(0.5)},
		{Passage: Passage{ID: "rerank"}, Score: 0.05, RerankScore: ptr(0.3)},
	}
	SortScored(passages)
	assert.Equal(t, "sim-high", passages[0].ID) // 0.99 beats 0.5 and 0.3
	assert.Equal(t, "fusion", passages[1].ID)
	assert.Equal(t, "rerank", passages[2].ID)

	reranked := []ScoredPassage{
		{Passage: Passage{ID: "a"}, Score: 0.1, RerankScore: ptr(0.2)},
		{Passage: Passage{ID: "b"}, Score: 0.9, RerankScore: ptr(0.8)},
	}
	SortScored(reranked)
	assert.Equal(t, "b", reranked[0].ID)
}

func TestSortScoredTieBreaksByID(t *testing.T) {
	passages := []ScoredPassage{
		{Passage: Passage{ID: "zzz"}, Score: 0.5},
		{Passage: Passage{ID: "aaa"}, Score: 0.5},
		{Passage: Passage{ID: "mmm"}, Score: 0.5},
	}
	SortScored(passages)
	assert.Equal(t, []string{"aaa", "mmm", "zzz"},
		[]string{passages[0].ID, passages[1].ID, passages[2].ID})
}

func TestDedupeByID(t *testing.T) {
	passages := []ScoredPassage{
		{Passage: Passage{ID: "a"}, Score: 0.3},
		{Passage: Passage{ID: "b"}, Score: 0.8},
		{Passage: Passage{ID: "a"}, Score: 0.9},
	}
	out := DedupeByID(passages)
	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, float32(0.9), out[0].Score) // max score kept
	assert.Equal(t, "b", out[1].ID)
}
