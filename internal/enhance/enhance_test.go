package enhance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubStrategy struct {
	name     string
	variants []string
	err      error
	delay    time.Duration
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Variants(ctx context.Context, q Query) ([]string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.variants, s.err
}

func TestEnhanceOriginalAlwaysFirst(t *testing.T) {
	e := NewEnhancer(time.Second, zap.NewNop())
	set := e.Enhance(context.Background(), Query{Text: "câu hỏi gốc"}, nil)

	assert.Len(t, set.Variants, 1)
	assert.Equal(t, "câu hỏi gốc", set.Variants[0].Text)
	assert.Equal(t, "original", set.Variants[0].Strategy)
}

func TestEnhanceMergesInStrategyOrder(t *testing.T) {
	e := NewEnhancer(time.Second, zap.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "first", variants: []string{"biến thể một", "biến thể hai"}},
		&stubStrategy{name: "second", variants: []string{"biến thể ba"}},
	}

	set := e.Enhance(context.Background(), Query{Text: "gốc"}, strategies)

	texts := set.Texts()
	assert.Equal(t, []string{"gốc", "biến thể một", "biến thể hai", "biến thể ba"}, texts)
	assert.Equal(t, "first", set.Variants[1].Strategy)
	assert.Equal(t, "second", set.Variants[3].Strategy)
}

func TestEnhanceDeduplicatesCaseInsensitive(t *testing.T) {
	e := NewEnhancer(time.Second, zap.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "a", variants: []string{"  Gốc  ", "mới"}},
		&stubStrategy{name: "b", variants: []string{"MỚI", "khác"}},
	}

	set := e.Enhance(context.Background(), Query{Text: "gốc"}, strategies)
	assert.Equal(t, []string{"gốc", "mới", "khác"}, set.Texts())
}

func TestEnhanceStrategyFailureIsIsolated(t *testing.T) {
	e := NewEnhancer(time.Second, zap.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "broken", err: errors.New("provider down")},
		&stubStrategy{name: "working", variants: []string{"biến thể"}},
	}

	set := e.Enhance(context.Background(), Query{Text: "gốc"}, strategies)

	assert.Equal(t, []string{"gốc", "biến thể"}, set.Texts())
	assert.Equal(t, []string{"enhance_broken_failed"}, set.Warnings)
}

func TestEnhanceTimeoutDegrades(t *testing.T) {
	e := NewEnhancer(50*time.Millisecond, zap.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "slow", variants: []string{"trễ"}, delay: time.Second},
		&stubStrategy{name: "fast", variants: []string{"nhanh"}},
	}

	start := time.Now()
	set := e.Enhance(context.Background(), Query{Text: "gốc"}, strategies)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"gốc", "nhanh"}, set.Texts())
	assert.Contains(t, set.Warnings, "enhance_slow_failed")
}

func TestEnhanceEmptyVariantsDropped(t *testing.T) {
	e := NewEnhancer(time.Second, zap.NewNop())
	strategies := []Strategy{
		&stubStrategy{name: "blanks", variants: []string{"", "  ", "thật"}},
	}
	set := e.Enhance(context.Background(), Query{Text: "gốc"}, strategies)
	assert.Equal(t, []string{"gốc", "thật"}, set.Texts())
}
