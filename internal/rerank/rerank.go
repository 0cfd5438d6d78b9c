// Package rerank provides second-pass relevance scoring over retrieved
// passages: a cross-encoder sidecar, an LLM judge, and a term-overlap
// fallback.
package rerank

import (
	"context"
	"errors"
	"sort"
)

var (
	// ErrUnavailable indicates the scoring backend cannot be reached.
	ErrUnavailable = errors.New("reranker unavailable")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Document is a candidate passage to be scored against a query.
type Document struct {
	ID      string  // Unique passage identifier
	Content string  // Text content to be scored
	Score   float32 // Prior retrieval score, used for tie-breaks
}

// ScoredDocument is a document with its rerank score.
type ScoredDocument struct {
	Document
	RerankScore  float32 // Cross-encoder (or judge) relevance score
	OriginalRank int     // Position in the input list (0-indexed)
}

// Reranker scores (query, passage) pairs and returns passages sorted by
// relevance descending, truncated to topN.
//
// Implementations must not reorder their input before scoring: the model is
// deterministic for equal input, and shuffling would break result
// reproducibility. Rerank must be safe for concurrent use; the
// registry shares one instance across requests.
type Reranker interface {
	// Name identifies the scoring backend for health and warnings.
	Name() string

	// Rerank scores docs against query, sorts by RerankScore descending
	// (ties: prior retrieval score, then ID ascending), and truncates to
	// topN. topN <= 0 means no truncation.
	Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error)

	// Close releases backend resources. Idempotent.
	Close() error
}

// sortScored orders by rerank score descending, ties by prior score then ID.
func sortScored(docs []ScoredDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].RerankScore != docs[j].RerankScore {
			return docs[i].RerankScore > docs[j].RerankScore
		}
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
}

// truncate caps the result list at topN when topN is positive.
func truncate(docs []ScoredDocument, topN int) []ScoredDocument {
	if topN > 0 && len(docs) > topN {
		return docs[:topN]
	}
	return docs
}
