package retrieve

import (
	"context"
	"sort"

	"github.com/lexviet/bidrag/internal/embeddings"
	"github.com/lexviet/bidrag/internal/vectorstore"
)

// DefaultRRFC is the standard reciprocal-rank-fusion constant.
const DefaultRRFC = 60

// Fusion combines per-variant result lists by reciprocal-rank fusion:
// score(p) = Σ over lists of 1/(rank+C). Passages absent from a list
// contribute zero for that list.
type Fusion struct {
	searcher variantSearcher
	c        float64
}

// NewFusion creates the RRF retriever. c <= 0 selects the default constant.
func NewFusion(embedder embeddings.Embedder, store vectorstore.Store, fanOut int, c float64) *Fusion {
	if fanOut <= 0 {
		fanOut = 4
	}
	if c <= 0 {
		c = DefaultRRFC
	}
	return &Fusion{
		searcher: variantSearcher{embedder: embedder, store: store, fanOut: fanOut},
		c:        c,
	}
}

// Retrieve fuses variant lists by RRF. Ties break on higher maximum
// similarity, then ID ascending.
func (r *Fusion) Retrieve(ctx context.Context, texts []string, k int, filter *vectorstore.Filter) ([]vectorstore.ScoredPassage, error) {
	if len(texts) == 0 {
		return nil, ErrNoQuery
	}
	lists, err := r.searcher.search(ctx, texts, k, filter)
	if err != nil {
		return nil, err
	}
	fused := rrf(lists, r.c)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// rrf merges ranked lists. Rank is 1-based within each list.
func rrf(lists [][]vectorstore.ScoredPassage, c float64) []vectorstore.ScoredPassage {
	type entry struct {
		passage vectorstore.ScoredPassage
		fusion  float64
	}
	byID := make(map[string]*entry)

	for _, list := range lists {
		for rank, p := range list {
			weight := 1.0 / (float64(rank+1) + c)
			e, ok := byID[p.ID]
			if !ok {
				byID[p.ID] = &entry{passage: p, fusion: weight}
				continue
			}
			e.fusion += weight
			if p.Score > e.passage.Score {
				e.passage.Score = p.Score
			}
		}
	}

	out := make([]vectorstore.ScoredPassage, 0, len(byID))
	for _, e := range byID {
		fusion := float32(e.fusion)
		p := e.passage
		p.FusionScore = &fusion
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if *out[i].FusionScore != *out[j].FusionScore {
			return *out[i].FusionScore > *out[j].FusionScore
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
