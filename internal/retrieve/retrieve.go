// Package retrieve implements the retriever family over the vector store:
// direct search, enhanced multi-variant union, reciprocal-rank fusion, and
// complexity-adaptive k selection.
package retrieve

import (
	"context"
	"errors"

	"github.com/lexviet/bidrag/internal/embeddings"
	"github.com/lexviet/bidrag/internal/vectorstore"
	"golang.org/x/sync/errgroup"
)

// ErrNoQuery indicates Retrieve was called without any query text.
var ErrNoQuery = errors.New("no query text")

// Retriever turns query variants into scored passages. The first element of
// texts is always the original query; enhanced retrievers search every
// variant, the base retriever only the first.
//
// Invariant: no retriever returns two passages with equal identifiers.
type Retriever interface {
	Retrieve(ctx context.Context, texts []string, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, error)
}

// Base embeds the original query and searches the store once.
type Base struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
}

// NewBase creates the direct retriever.
func NewBase(embedder embeddings.Embedder, store vectorstore.Store) *Base {
	return &Base{embedder: embedder, store: store}
}

// Retrieve embeds texts[0] and returns the store's top k.
func (r *Base) Retrieve(ctx context.Context, texts []string, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, error) {
	if len(texts) == 0 {
		return nil, ErrNoQuery
	}
	vec, err := r.embedder.EmbedQuery(ctx, texts[0])
	if err != nil {
		return nil, err
	}
	results, err := r.store.Search(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}
	return vectorstore.DedupeByID(results), nil
}

// variantSearcher runs one embed+search per variant with bounded fan-out,
// preserving variant order in the output. Shared by Enhanced and Fusion.
type variantSearcher struct {
	embedder embeddings.Embedder
	store    vectorstore.Store
	fanOut   int
}

// search returns one result list per variant. A variant whose embed or
// search fails yields a nil list rather than failing the whole stage, but
// if every variant fails the first error is returned.
func (v *variantSearcher) search(ctx context.Context, texts []string, k int, filter *vectorstore.Filter) ([][]vectorstore.ScoredPassage, error) {
	lists := make([][]vectorstore.ScoredPassage, len(texts))
	errs := make([]error, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.fanOut)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := v.embedder.EmbedQuery(gctx, text)
			if err != nil {
				errs[i] = err
				return nil
			}
			results, err := v.store.Search(gctx, vec, k, filter)
			if err != nil {
				errs[i] = err
				return nil
			}
			lists[i] = results
			return nil
		})
	}
	_ = g.Wait()

	anyOK := false
	for _, err := range errs {
		if err == nil {
			anyOK = true
			break
		}
	}
	if !anyOK {
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
	}
	return lists, nil
}

// Enhanced searches every variant and unions the results, keeping the
// maximum similarity per passage.
type Enhanced struct {
	searcher variantSearcher
}

// NewEnhanced creates the union retriever. fanOut bounds concurrent variant
// embeddings so one request cannot starve others at the embedding provider.
func NewEnhanced(embedder embeddings.Embedder, store vectorstore.Store, fanOut int) *Enhanced {
	if fanOut <= 0 {
		fanOut = 4
	}
	return &Enhanced{searcher: variantSearcher{embedder: embedder, store: store, fanOut: fanOut}}
}

// Retrieve unions all variant result lists, dedupes by ID with max score,
// sorts by score descending (ties by ID), and truncates to k.
func (r *Enhanced) Retrieve(ctx context.Context, texts []string, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, error) {
	if len(texts) == 0 {
		return nil, ErrNoQuery
	}
	lists, err := r.searcher.search(ctx, texts, k, filter)
	if err != nil {
		return nil, err
	}

	var union []vectorstore.ScoredPassage
	for _, list := range lists {
		union = append(union, list...)
	}
	merged := vectorstore.DedupeByID(union)
	vectorstore.SortScored(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}
