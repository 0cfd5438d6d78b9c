// Package enhance derives query variants that widen retrieval coverage:
// paraphrases, a hypothetical answer passage, a step-back generalization,
// and sub-questions for compound queries.
package enhance

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Query is the raw user question plus the caller-provided conversation
// summary. Transient; never persisted.
type Query struct {
	Text                string
	ConversationSummary string
}

// Variant is one derived query string with its provenance.
type Variant struct {
	Text     string
	Strategy string
}

// Set is a deduplicated, deterministically ordered collection of variants.
// The original query is always the first element.
type Set struct {
	Variants []Variant
	// Warnings lists strategies that failed or timed out.
	Warnings []string
}

// Texts returns the variant strings in order.
func (s *Set) Texts() []string {
	out := make([]string, len(s.Variants))
	for i, v := range s.Variants {
		out[i] = v.Text
	}
	return out
}

// Strategy derives zero or more query strings from a query. Implementations
// are pure with respect to the query: no retained state between calls.
type Strategy interface {
	// Name tags the variants this strategy produces.
	Name() string

	// Variants returns derived query strings. An error means this strategy
	// contributes nothing; the enhancement as a whole never fails.
	Variants(ctx context.Context, q Query) ([]string, error)
}

// Enhancer runs strategies concurrently under a shared deadline.
type Enhancer struct {
	deadline time.Duration
	logger   *zap.Logger
}

// NewEnhancer creates an enhancer. The deadline is shared by all strategies
// of one request.
func NewEnhancer(deadline time.Duration, logger *zap.Logger) *Enhancer {
	if deadline <= 0 {
		deadline = 2 * time.Second
	}
	return &Enhancer{deadline: deadline, logger: logger}
}

// Enhance runs the selected strategies in parallel and merges their output.
// Strategy failures and timeouts degrade to an empty contribution with a
// warning; the original query is always present. Variant order is strategy
// order, then insertion order within a strategy. Duplicates are removed by
// case-insensitive exact match after trimming.
func (e *Enhancer) Enhance(ctx context.Context, q Query, strategies []Strategy) *Set {
	results := make([][]string, len(strategies))
	failed := make([]bool, len(strategies))

	gctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	g, gctx := errgroup.WithContext(gctx)
	for i, s := range strategies {
		g.Go(func() error {
			variants, err := s.Variants(gctx, q)
			if err != nil {
				e.logger.Warn("enhancement strategy failed",
					zap.String("strategy", s.Name()), zap.Error(err))
				failed[i] = true
				return nil // isolated: never abort siblings
			}
			results[i] = variants
			return nil
		})
	}
	_ = g.Wait()

	set := &Set{Variants: []Variant{{Text: q.Text, Strategy: "original"}}}
	seen := map[string]bool{dedupeKey(q.Text): true}

	for i, s := range strategies {
		if failed[i] {
			set.Warnings = append(set.Warnings, "enhance_"+s.Name()+"_failed")
			continue
		}
		for _, text := range results[i] {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			key := dedupeKey(text)
			if seen[key] {
				continue
			}
			seen[key] = true
			set.Variants = append(set.Variants, Variant{Text: text, Strategy: s.Name()})
		}
	}
	return set
}

func dedupeKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
