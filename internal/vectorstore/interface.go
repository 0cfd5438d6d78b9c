// Package vectorstore defines the passage model and the similarity-search
// interface over the pgvector-backed corpus.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrStoreUnavailable indicates a transient store failure (connection,
	// timeout). Distinct from an empty result: the orchestrator fails the
	// request as dependency_unavailable on this class without retrying,
	// while zero rows simply proceed.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates the store's vector column disagrees with
	// the configured embedding dimension. The process must refuse to start.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Store is the similarity-search interface consumed by the retrievers.
//
// Results are approximate (ANN index); recall is a property of the store's
// index configuration, not of this interface.
type Store interface {
	// Search returns up to k passages ordered by similarity descending,
	// ties broken by ID ascending. A nil filter matches everything.
	Search(ctx context.Context, embedding []float32, k int, filter *Filter) ([]ScoredPassage, error)

	// Fetch re-hydrates passages by ID for cache lookups. Missing IDs are
	// skipped, not errors; the caller decides how to treat shrinkage.
	Fetch(ctx context.Context, ids []string) ([]Passage, error)

	// Dimension reports the store's vector dimension for the startup
	// invariant check against the embedding model.
	Dimension(ctx context.Context) (int, error)

	// Close releases the store connection.
	Close() error
}
