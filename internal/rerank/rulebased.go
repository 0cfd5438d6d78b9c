package rerank

import (
	"context"
	"strings"
	"unicode"
)

// RuleBased is a term-overlap reranker used when the cross-encoder is
// unavailable. It combines the prior retrieval score with the fraction of
// query terms found in the passage, weighted equally.
type RuleBased struct{}

// NewRuleBased creates a rule-based reranker.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Name identifies the backend.
func (r *RuleBased) Name() string { return "rule-based" }

// Rerank scores documents by term overlap with the query.
func (r *RuleBased) Rerank(ctx context.Context, query string, docs []Document, topN int) ([]ScoredDocument, error) {
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}

	queryTokens := tokenize(query)
	scored := make([]ScoredDocument, len(docs))

	for i, doc := range docs {
		overlap := float32(0)
		if len(queryTokens) > 0 {
			overlap = termOverlap(queryTokens, tokenize(doc.Content))
		}
		scored[i] = ScoredDocument{
			Document:     doc,
			RerankScore:  0.5*doc.Score + 0.5*overlap,
			OriginalRank: i,
		}
	}

	sortScored(scored)
	return truncate(scored, topN), nil
}

// Close is a no-op.
func (r *RuleBased) Close() error { return nil }

// vietnameseStopwords are high-frequency function words that carry no
// retrieval signal.
var vietnameseStopwords = map[string]bool{
	"và": true, "của": true, "là": true, "các": true, "có": true,
	"cho": true, "trong": true, "được": true, "với": true, "theo": true,
	"về": true, "này": true, "đó": true, "những": true, "một": true,
	"khi": true, "đã": true, "sẽ": true, "tại": true, "từ": true,
	"như": true, "không": true, "phải": true, "để": true, "trên": true,
	"bao": true, "nhiêu": true, "gì": true, "nào": true, "lâu": true,
	"thế": true, "ra": true, "bị": true, "do": true, "hay": true,
	"hoặc": true, "nếu": true, "thì": true, "mà": true, "cũng": true,
}

// tokenize lowercases and splits on non-letter runes, dropping stopwords.
// Vietnamese is written with spaces between syllables, so unigram matching
// is the workable granularity without a word segmenter.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !vietnameseStopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

// termOverlap returns the fraction of query tokens present in the document.
func termOverlap(queryTokens, docTokens []string) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	docSet := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = true
	}
	matches := 0
	for _, t := range queryTokens {
		if docSet[t] {
			matches++
		}
	}
	return float32(matches) / float32(len(queryTokens))
}
